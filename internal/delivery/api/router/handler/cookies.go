package handler

import (
	"net/http"
	"strings"
	"time"

	"authsvc/config"
)

// cookieJar builds the cookies the auth endpoints set and clear.
type cookieJar struct {
	refreshName string
	stateName   string
	domain      string
	statePath   string
	secure      bool
	refreshTTL  time.Duration
	stateTTL    time.Duration
}

func newCookieJar(cfg *config.Config) *cookieJar {
	statePath := strings.TrimRight(cfg.HTTP.BasePath, "/")
	if statePath == "" {
		statePath = "/"
	}

	return &cookieJar{
		refreshName: cfg.Cookie.RefreshName,
		stateName:   cfg.Cookie.StateName,
		domain:      cfg.Cookie.Domain,
		statePath:   statePath,
		secure:      !cfg.IsDevelopment(),
		refreshTTL:  cfg.Auth.RefreshTokenTTL,
		stateTTL:    cfg.Auth.OAuthStateTTL,
	}
}

// refresh carries the refresh token. It is never readable from scripts and never sent cross-site.
func (j *cookieJar) refresh(token string) *http.Cookie {
	return &http.Cookie{
		Name:     j.refreshName,
		Value:    token,
		Path:     "/",
		Domain:   j.domain,
		MaxAge:   int(j.refreshTTL.Seconds()),
		Expires:  time.Now().Add(j.refreshTTL),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (j *cookieJar) clearRefresh() *http.Cookie {
	return &http.Cookie{
		Name:     j.refreshName,
		Value:    "",
		Path:     "/",
		Domain:   j.domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// state pins the OAuth nonce to the browser. Lax so it survives the top-level redirect back from the provider.
func (j *cookieJar) state(nonce string) *http.Cookie {
	return &http.Cookie{
		Name:     j.stateName,
		Value:    nonce,
		Path:     j.statePath,
		Domain:   j.domain,
		MaxAge:   int(j.stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (j *cookieJar) clearState() *http.Cookie {
	return &http.Cookie{
		Name:     j.stateName,
		Value:    "",
		Path:     j.statePath,
		Domain:   j.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
