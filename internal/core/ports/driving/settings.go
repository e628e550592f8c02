package driving

import "github.com/custodia-labs/ledgersync/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, filling unset values
	// with defaults.
	Get() (*domain.Settings, error)

	// Save persists application settings. Empty secrets are not written so
	// that values supplied by the environment are never copied to disk.
	Save(settings *domain.Settings) error

	// Validate checks that the settings are usable for a sync.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings
}
