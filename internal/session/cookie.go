package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultCookieName = "ff_session"
	signedPrefix      = "s:"
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Name     string
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	Domain   string
	MaxAge   time.Duration
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Name == "" {
		o.Name = DefaultCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if !o.HttpOnly {
		o.HttpOnly = true
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.MaxAge == 0 {
		o.MaxAge = TTL
	}
	return o
}

// Cookies issues and reads the signed session cookie. The wire format is
// "s:<value>.<sig>" with sig the unpadded base64 HMAC-SHA256 of value, which
// keeps cookies readable by existing express deployments.
type Cookies struct {
	secret []byte
	opts   CookieOptions
}

func NewCookies(secret string, opts CookieOptions) *Cookies {
	return &Cookies{secret: []byte(secret), opts: opts.normalize()}
}

func (c *Cookies) Name() string {
	return c.opts.Name
}

func (c *Cookies) sign(value string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(value))
	sig := base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
	return signedPrefix + value + "." + sig
}

func (c *Cookies) unsign(signed string) (string, bool) {
	if !strings.HasPrefix(signed, signedPrefix) {
		return "", false
	}
	body := strings.TrimPrefix(signed, signedPrefix)
	dot := strings.LastIndexByte(body, '.')
	if dot <= 0 {
		return "", false
	}
	value := body[:dot]
	if !hmac.Equal([]byte(c.sign(value)), []byte(signed)) {
		return "", false
	}
	return value, true
}

// Read returns the verified session id, or "" when the cookie is absent,
// tampered with or signed under another secret.
func (c *Cookies) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.opts.Name)
	if err != nil || cookie.Value == "" {
		return ""
	}
	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	id, ok := c.unsign(raw)
	if !ok {
		return ""
	}
	return id
}

// Set issues the session cookie to the client.
func (c *Cookies) Set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.opts.Name,
		Value:    url.QueryEscape(c.sign(sessionID)),
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		MaxAge:   int(c.opts.MaxAge.Seconds()),
		Expires:  time.Now().Add(c.opts.MaxAge),
		HttpOnly: c.opts.HttpOnly,
		Secure:   c.opts.Secure,
		SameSite: c.opts.SameSite,
	})
}

// Clear removes the session cookie from the client.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.opts.Name,
		Value:    "",
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		MaxAge:   -1,
		HttpOnly: c.opts.HttpOnly,
		Secure:   c.opts.Secure,
		SameSite: c.opts.SameSite,
	})
}

// Ensure returns the request's session id, minting one and setting the
// cookie when none is present.
func (c *Cookies) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if id := c.Read(r); id != "" {
		return id, nil
	}
	id, err := GenerateID()
	if err != nil {
		return "", err
	}
	c.Set(w, id)
	return id, nil
}
