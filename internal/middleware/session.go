package middleware

import (
	"net/http"

	"github.com/gorilla/sessions"
)

// NewSessionStore builds the cookie store shared with the login flow. The
// cookie is scoped to the root domain so every tenant subdomain sees it.
func NewSessionStore(secret, rootDomain string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   cookieDomain(rootDomain),
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func cookieDomain(rootDomain string) string {
	host := rootDomain
	for i := 0; i < len(host); i++ {
		if host[i] == ':' {
			host = host[:i]
			break
		}
	}
	if host == "" || host == "localhost" {
		return ""
	}
	return host
}
