package middlewares

import (
	"net/http"

	"github.com/marcopiovanello/dlp-bridge/server/config"
)

// Guard is implemented by the OpenID provider.
type Guard interface {
	Middleware(next http.Handler) http.Handler
}

// ApplyAuthenticationByConfig returns the authentication chain selected by
// the configuration. A nil guard skips OpenID.
func ApplyAuthenticationByConfig(cfg *config.Config, openid Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := next

		if cfg.Authentication.RequireAuth {
			handler = Authenticated(cfg.Authentication.JWTSecret)(handler)
		}
		if cfg.OpenId.UseOpenId && openid != nil {
			handler = openid.Middleware(handler)
		}

		return handler
	}
}
