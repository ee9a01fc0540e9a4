package service

import (
	"context"

	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
	"penguin-ternos-backend/internal/repository"
)

type settingsService struct {
	repo repository.SettingsRepository
}

func NewSettingsService(repo repository.SettingsRepository) SettingsService {
	return &settingsService{repo: repo}
}

func (s *settingsService) GetSettings(ctx context.Context) (*domain.Settings, error) {
	settings, err := s.repo.Get(ctx)
	if err == nil {
		return settings, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	logger.Info("Creating default settings")
	settings = domain.DefaultSettings()
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, update domain.SettingsUpdate) (*domain.Settings, error) {
	logger.EnterMethod("settingsService.UpdateSettings")
	settings, err := s.GetSettings(ctx)
	if err != nil {
		logger.ExitMethodWithError("settingsService.UpdateSettings", err)
		return nil, err
	}
	if err := update.Apply(settings); err != nil {
		logger.ExitMethodWithError("settingsService.UpdateSettings", err)
		return nil, err
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		logger.ExitMethodWithError("settingsService.UpdateSettings", err)
		return nil, err
	}
	logger.ExitMethod("settingsService.UpdateSettings")
	return settings, nil
}
