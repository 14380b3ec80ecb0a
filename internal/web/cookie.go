// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package web

import (
	"net/http"

	"github.com/yoshisuproject/simpleauth/internal/config"
)

// CookieManager reads and writes the session cookie.
type CookieManager struct {
	cfg config.CookieConfig
}

// NewCookieManager creates a cookie manager from configuration.
func NewCookieManager(cfg config.CookieConfig) *CookieManager {
	return &CookieManager{cfg: cfg}
}

// Write sets the session cookie carrying the bearer token.
func (c *CookieManager) Write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    token,
		Path:     c.cfg.Path,
		MaxAge:   int(c.cfg.MaxAge.Seconds()),
		HttpOnly: c.cfg.HTTPOnly,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func (c *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    "",
		Path:     c.cfg.Path,
		MaxAge:   -1,
		HttpOnly: c.cfg.HTTPOnly,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session token from the request cookie, if present.
func (c *CookieManager) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.cfg.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
