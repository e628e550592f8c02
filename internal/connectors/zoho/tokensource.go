package zoho

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// tokenPath is the OAuth token endpoint on the accounts server.
//
//nolint:gosec // G101: Not credentials, OAuth endpoint path
const tokenPath = "/oauth/v2/token"

// TokenSource mints access tokens from a refresh token. Tokens are cached
// until expiry; Invalidate forces the next call to refresh.
type TokenSource struct {
	mu           sync.Mutex
	ctx          context.Context
	conf         *oauth2.Config
	refreshToken string
	src          oauth2.TokenSource
}

// NewTokenSource creates a token source against accountsURL. httpClient is
// used for refresh calls when non-nil.
func NewTokenSource(
	ctx context.Context, accountsURL, clientID, clientSecret, refreshToken string, httpClient *http.Client,
) *TokenSource {
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	return &TokenSource{
		ctx: ctx,
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  strings.TrimRight(accountsURL, "/") + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshToken: refreshToken,
	}
}

// Token implements oauth2.TokenSource.
func (t *TokenSource) Token() (*oauth2.Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refreshToken == "" || t.conf.ClientID == "" {
		return nil, domain.ErrAuthRequired
	}
	if t.src == nil {
		t.src = t.conf.TokenSource(t.ctx, &oauth2.Token{RefreshToken: t.refreshToken})
	}

	tok, err := t.src.Token()
	if err != nil {
		t.src = nil
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenRefreshFailed, err)
	}
	return tok, nil
}

// Invalidate drops the cached access token.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.src = nil
}
