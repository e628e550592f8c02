package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyAccountsURL      = "source.accounts_url"
	keyAPIBaseURL       = "source.api_base_url"
	keyClientID         = "source.client_id"
	keyClientSecret     = "source.client_secret"
	keyRefreshToken     = "source.refresh_token"
	keyOrganizationID   = "source.organization_id"
	keyRequestsPerSec   = "source.requests_per_second"
	keyWindowDays       = "sync.window_days"
	keyModules          = "sync.modules"
	keyOperatorDomain   = "sync.operator_domain"
	keyFetchComments    = "sync.fetch_comments"
	keyScheduleInterval = "sync.schedule_interval"
	keyServerAddr       = "server.addr"
	keyDataDir          = "data_dir"
	keyLogFile          = "log_file"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	interval, err := s.getDuration(keyScheduleInterval, defaults.Sync.ScheduleInterval)
	if err != nil {
		return nil, err
	}

	settings := &domain.Settings{
		Source: domain.SourceSettings{
			AccountsURL:       s.getString(keyAccountsURL, defaults.Source.AccountsURL),
			APIBaseURL:        s.getString(keyAPIBaseURL, defaults.Source.APIBaseURL),
			ClientID:          s.configStore.GetString(keyClientID),
			ClientSecret:      s.configStore.GetString(keyClientSecret),
			RefreshToken:      s.configStore.GetString(keyRefreshToken),
			OrganizationID:    s.getString(keyOrganizationID, ""),
			RequestsPerSecond: s.getFloat(keyRequestsPerSec, defaults.Source.RequestsPerSecond),
		},
		Sync: domain.SyncSettings{
			WindowDays:       s.getInt(keyWindowDays, defaults.Sync.WindowDays),
			Modules:          s.getModules(defaults.Sync.Modules),
			OperatorDomain:   s.getString(keyOperatorDomain, ""),
			FetchComments:    s.getBool(keyFetchComments, defaults.Sync.FetchComments),
			ScheduleInterval: interval,
		},
		Server: domain.ServerSettings{
			Addr: s.getString(keyServerAddr, defaults.Server.Addr),
		},
		DataDir: s.getString(keyDataDir, defaults.DataDir),
		LogFile: s.getString(keyLogFile, defaults.LogFile),
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyAccountsURL, settings.Source.AccountsURL},
		{keyAPIBaseURL, settings.Source.APIBaseURL},
		{keyClientID, settings.Source.ClientID},
		{keyOrganizationID, settings.Source.OrganizationID},
		{keyRequestsPerSec, settings.Source.RequestsPerSecond},
		{keyWindowDays, settings.Sync.WindowDays},
		{keyModules, settings.Sync.Modules},
		{keyOperatorDomain, settings.Sync.OperatorDomain},
		{keyFetchComments, settings.Sync.FetchComments},
		{keyScheduleInterval, settings.Sync.ScheduleInterval.String()},
		{keyServerAddr, settings.Server.Addr},
		{keyDataDir, settings.DataDir},
		{keyLogFile, settings.LogFile},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set
	if settings.Source.ClientSecret != "" {
		if err := s.configStore.Set(keyClientSecret, settings.Source.ClientSecret); err != nil {
			return fmt.Errorf("save %s: %w", keyClientSecret, err)
		}
	}
	if settings.Source.RefreshToken != "" {
		if err := s.configStore.Set(keyRefreshToken, settings.Source.RefreshToken); err != nil {
			return fmt.Errorf("save %s: %w", keyRefreshToken, err)
		}
	}

	return nil
}

// Validate checks if current settings are usable for a sync.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.Source.IsConfigured() {
		return fmt.Errorf("%w: client_id, client_secret, refresh_token and organization_id must be set",
			domain.ErrAuthRequired)
	}
	if settings.Sync.WindowDays <= 0 {
		return fmt.Errorf("%w: sync.window_days must be positive", domain.ErrInvalidInput)
	}
	if settings.Source.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: source.requests_per_second must be positive", domain.ErrInvalidInput)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// getString returns a config string or the default.
func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

// getInt returns a config int or the default. String values from the
// environment are parsed.
func (s *SettingsService) getInt(key string, defaultVal int) int {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	if str, isString := val.(string); isString {
		n, err := strconv.Atoi(strings.TrimSpace(str))
		if err != nil {
			return defaultVal
		}
		return n
	}
	if n := s.configStore.GetInt(key); n != 0 {
		return n
	}
	return defaultVal
}

// getFloat returns a config number or the default.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	f, ok := domain.Record{key: val}.Float(key)
	if !ok || f <= 0 {
		return defaultVal
	}
	return f
}

// getBool returns a config bool or the default.
func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return defaultVal
		}
		return b
	default:
		return defaultVal
	}
}

// getDuration parses a Go duration string such as "6h". "0" disables.
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	str := strings.TrimSpace(s.configStore.GetString(key))
	if str == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	return d, nil
}

// getModules accepts a TOML array or a comma-separated string.
func (s *SettingsService) getModules(defaultVal []string) []string {
	modules := s.configStore.GetStringSlice(keyModules)
	if len(modules) == 0 {
		if str := s.configStore.GetString(keyModules); str != "" {
			for _, m := range strings.Split(str, ",") {
				if m = strings.TrimSpace(m); m != "" {
					modules = append(modules, m)
				}
			}
		}
	}
	if len(modules) == 0 {
		return append([]string(nil), defaultVal...)
	}
	return modules
}
