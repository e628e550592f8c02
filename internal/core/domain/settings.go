package domain

import "time"

// DefaultModules is the module order used when a sync names none.
var DefaultModules = []string{"salesorders", "invoices", "purchaseorders", "bills"}

// SourceSettings holds connection settings for the external business system.
type SourceSettings struct {
	// AccountsURL is the OAuth server base URL.
	AccountsURL string

	// APIBaseURL is the API domain, e.g. https://www.zohoapis.com.
	APIBaseURL string

	// ClientID is the OAuth client ID.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// RefreshToken is the long-lived token used to mint access tokens.
	RefreshToken string

	// OrganizationID is the default organisation for principals without one.
	OrganizationID string

	// RequestsPerSecond caps upstream calls across all services.
	RequestsPerSecond float64
}

// IsConfigured returns true if credentials are present.
func (s SourceSettings) IsConfigured() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != "" && s.OrganizationID != ""
}

// SyncSettings holds historical sync behaviour configuration.
type SyncSettings struct {
	// WindowDays is the default trailing window.
	WindowDays int

	// Modules is the default module list.
	Modules []string

	// OperatorDomain is the e-mail domain treated as internal when scanning
	// comments for external addresses.
	OperatorDomain string

	// FetchComments enables the best-effort comments step.
	FetchComments bool

	// ScheduleInterval is how often the scheduler runs a historical sync.
	// Zero disables the scheduled task.
	ScheduleInterval time.Duration
}

// ServerSettings holds settings for the admin HTTP surface.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string
}

// Settings holds all application settings.
type Settings struct {
	Source SourceSettings
	Sync   SyncSettings
	Server ServerSettings

	// DataDir holds the SQLite cache.
	DataDir string

	// LogFile, when set, receives every log line with rotation.
	LogFile string
}

// DefaultSettings returns settings with sensible defaults.
// Credentials are left empty.
func DefaultSettings() Settings {
	return Settings{
		Source: SourceSettings{
			AccountsURL:       "https://accounts.zoho.com",
			APIBaseURL:        "https://www.zohoapis.com",
			RequestsPerSecond: 1,
		},
		Sync: SyncSettings{
			WindowDays:       30,
			Modules:          append([]string(nil), DefaultModules...),
			FetchComments:    true,
			ScheduleInterval: 6 * time.Hour,
		},
		Server: ServerSettings{
			Addr: "127.0.0.1:8484",
		},
	}
}
