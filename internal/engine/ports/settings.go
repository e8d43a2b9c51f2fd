package ports

//go:generate mockgen -source=settings.go -destination=../mocks/settings-mocks.go -package=mocks SettingsProvider

import (
	"context"

	"checkout/internal/pidl/models"
)

// SettingsProvider defines the interface for partner-experience lookups.
// Implementations return (nil, nil) when the partner runs on defaults so the
// engine never has to distinguish "no setting" from "empty setting".
type SettingsProvider interface {
	// GetSetting returns the setting scoped to partner and country. A
	// country-scoped setting is preferred over a partner-wide one.
	GetSetting(ctx context.Context, partner, country string) (*models.PartnerExperienceSetting, error)
}
