package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penguin-ternos-backend/internal/config"
	"penguin-ternos-backend/internal/jobs"
)

func TestNewScheduler(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		ReleaseMaintenanceHolds: "0 */15 * * * *",
		ReportOverdueRentals:    "0 0 8 * * *",
	}}
	s, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s.Start()
	s.Stop()
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		ReleaseMaintenanceHolds: "every now and then",
		ReportOverdueRentals:    "0 0 8 * * *",
	}}
	_, err := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	assert.Error(t, err)
}
