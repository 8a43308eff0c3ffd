package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
		expect string
	}{
		{
			name:   "no token",
			setup:  func(r *http.Request) {},
			expect: "",
		},
		{
			name: "cookie only",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "from-cookie"})
			},
			expect: "from-cookie",
		},
		{
			name: "header only",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer from-header")
			},
			expect: "from-header",
		},
		{
			name: "cookie wins over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "from-cookie"})
				r.Header.Set("Authorization", "Bearer from-header")
			},
			expect: "from-cookie",
		},
		{
			name: "malformed authorization header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic abc123")
			},
			expect: "",
		},
		{
			name: "bearer is case-insensitive",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "bearer from-header")
			},
			expect: "from-header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			assert.Equal(t, tt.expect, ExtractToken(r, DefaultExtractors()))
		})
	}
}
