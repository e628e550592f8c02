package domain

// SystemPrincipalKey keys syncs that run without a user context
// (scheduler, CLI without --user).
const SystemPrincipalKey = "system"

// Principal is the identity upstream calls are made under.
// A nil *Principal is the system principal.
type Principal struct {
	// UserID identifies the operator the sync runs for.
	UserID string

	// OrganizationID selects the source organisation. Empty means the
	// configured default.
	OrganizationID string
}

// Key returns the registry key for the principal.
func (p *Principal) Key() string {
	if p == nil || p.UserID == "" {
		return SystemPrincipalKey
	}
	return p.UserID
}

// Organization returns the organisation id, or fallback when unset.
func (p *Principal) Organization(fallback string) string {
	if p == nil || p.OrganizationID == "" {
		return fallback
	}
	return p.OrganizationID
}
