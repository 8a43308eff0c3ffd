package auth

import (
	"net/http"
	"strings"
)

// TokenCookieName is the cookie the server sets on signup and login.
const TokenCookieName = "token"

// TokenExtractor pulls a candidate token out of a request, returning ""
// when the source is absent.
type TokenExtractor func(r *http.Request) string

// CookieExtractor reads the token from the named cookie.
func CookieExtractor(name string) TokenExtractor {
	return func(r *http.Request) string {
		cookie, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return cookie.Value
	}
}

// BearerExtractor reads the token from an Authorization: Bearer header.
func BearerExtractor(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// DefaultExtractors is the fixed extraction order: cookie first, then
// bearer header.
func DefaultExtractors() []TokenExtractor {
	return []TokenExtractor{CookieExtractor(TokenCookieName), BearerExtractor}
}

// ExtractToken tries each extractor in order and returns the first
// non-empty value.
func ExtractToken(r *http.Request, extractors []TokenExtractor) string {
	for _, extract := range extractors {
		if token := extract(r); token != "" {
			return token
		}
	}
	return ""
}
