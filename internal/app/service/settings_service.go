package service

import (
	"context"
	"time"

	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
)

type SettingsService interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, settings *models.Settings) error
}

type SettingsServiceImpl struct {
	settingsRepo repository.SettingsRepository
}

func NewSettingsService(settingsRepo repository.SettingsRepository) *SettingsServiceImpl {
	return &SettingsServiceImpl{settingsRepo: settingsRepo}
}

func (ss *SettingsServiceImpl) Get(ctx context.Context) (*models.Settings, error) {
	return ss.settingsRepo.Get(ctx)
}

func (ss *SettingsServiceImpl) Update(ctx context.Context, settings *models.Settings) error {
	settings.UpdatedAt = time.Now()
	return ss.settingsRepo.Update(ctx, settings)
}
