package openid

import (
	"context"
	"errors"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/marcopiovanello/dlp-bridge/server/config"
	"golang.org/x/oauth2"
)

type Provider struct {
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
	whitelist    []string
}

// Configure discovers the provider. It returns nil, nil when OpenID is
// disabled.
func Configure(ctx context.Context, cfg *config.OpenIdConfig) (*Provider, error) {
	if !cfg.UseOpenId {
		return nil, nil
	}
	if cfg.ProviderURL == "" || cfg.ClientId == "" {
		return nil, errors.New("openid provider url and client id are required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.ProviderURL)
	if err != nil {
		return nil, err
	}

	return &Provider{
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientId,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{
			ClientID: cfg.ClientId,
		}),
		whitelist: cfg.EmailWhitelist,
	}, nil
}
