package app

import (
	"context"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
)

type SettingsService struct {
	repo ports.SettingsRepository
}

func NewSettingsService(repo ports.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	return s.repo.Get(ctx)
}

func (s *SettingsService) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	// Validation légère.
	def := domain.DefaultSettings()
	if settings.MaxEpisodesPerFeed <= 0 {
		settings.MaxEpisodesPerFeed = def.MaxEpisodesPerFeed
	}
	if settings.MaxConcurrentDownloads <= 0 {
		settings.MaxConcurrentDownloads = def.MaxConcurrentDownloads
	}
	return s.repo.Put(ctx, settings)
}
