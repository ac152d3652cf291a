package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// AuthCookies writes the httpOnly access/refresh cookie pair. Secure follows
// configuration so plain-HTTP local development still works.
type AuthCookies struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewAuthCookies(domain string, secure bool) *AuthCookies {
	return &AuthCookies{Domain: domain, Secure: secure, SameSite: http.SameSiteLaxMode}
}

func (a *AuthCookies) SetPair(c *gin.Context, access string, accessExp time.Time, refresh string, refreshExp time.Time) {
	a.write(c, AccessTokenCookie, access, accessExp)
	a.write(c, RefreshTokenCookie, refresh, refreshExp)
}

// Clear expires both cookies.
func (a *AuthCookies) Clear(c *gin.Context) {
	a.write(c, AccessTokenCookie, "", time.Time{})
	a.write(c, RefreshTokenCookie, "", time.Time{})
}

func (a *AuthCookies) write(c *gin.Context, name, value string, exp time.Time) {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   a.Domain,
		Secure:   a.Secure,
		HttpOnly: true,
		SameSite: a.SameSite,
	}
	if value == "" {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	} else {
		ck.Expires = exp
		ck.MaxAge = secondsUntil(exp)
	}
	http.SetCookie(c.Writer, ck)
}

// secondsUntil never returns 0, which net/http would read as "no Max-Age".
func secondsUntil(exp time.Time) int {
	sec := int(time.Until(exp).Seconds())
	if sec <= 0 {
		return -1
	}
	return sec
}
