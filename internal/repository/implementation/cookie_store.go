package implementation

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"catalog-lens/internal/repository/contract"

	"github.com/gofiber/fiber/v2"
)

// CookieJar is the minimal cookie surface the CookieStore needs.
type CookieJar interface {
	Cookie(name string) (string, bool)
	SetCookie(cookie *http.Cookie)
}

// CookieStore keeps session values in cookies. Values are query-escaped so
// JSON records survive cookie value rules, matching what browser cookie
// helpers write.
type CookieStore struct {
	jar    CookieJar
	secure bool
}

func NewCookieStore(jar CookieJar, secure bool) *CookieStore {
	return &CookieStore{jar: jar, secure: secure}
}

func (s *CookieStore) Name() string {
	return "cookie"
}

func (s *CookieStore) Get(_ context.Context, key string) (string, error) {
	raw, ok := s.jar.Cookie(key)
	if !ok || raw == "" {
		return "", contract.ErrCredentialNotFound
	}
	value, err := url.QueryUnescape(raw)
	if err != nil {
		// Written by something that did not escape; use as-is.
		return raw, nil
	}
	return value, nil
}

func (s *CookieStore) Set(_ context.Context, key, value string) error {
	s.jar.SetCookie(&http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *CookieStore) Delete(_ context.Context, key string) error {
	s.jar.SetCookie(&http.Cookie{
		Name:    key,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
	return nil
}

// FiberCookies adapts a request context. Writes made during the request are
// visible to later reads in the same request.
type FiberCookies struct {
	ctx     *fiber.Ctx
	written map[string]*string
}

func NewFiberCookies(ctx *fiber.Ctx) *FiberCookies {
	return &FiberCookies{ctx: ctx, written: map[string]*string{}}
}

func (f *FiberCookies) Cookie(name string) (string, bool) {
	if v, ok := f.written[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	value := f.ctx.Cookies(name)
	return value, value != ""
}

func (f *FiberCookies) SetCookie(cookie *http.Cookie) {
	fc := &fiber.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		Secure:   cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if cookie.MaxAge < 0 {
		fc.Value = ""
		fc.Expires = time.Unix(0, 0)
		f.written[cookie.Name] = nil
	} else {
		value := cookie.Value
		f.written[cookie.Name] = &value
	}
	f.ctx.Cookie(fc)
}

// JarCookies adapts a net/http cookie jar scoped to one origin, as used by
// the CLI's HTTP client.
type JarCookies struct {
	jar    http.CookieJar
	origin *url.URL
}

func NewJarCookies(jar http.CookieJar, origin *url.URL) *JarCookies {
	return &JarCookies{jar: jar, origin: origin}
}

func (j *JarCookies) Cookie(name string) (string, bool) {
	for _, c := range j.jar.Cookies(j.origin) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (j *JarCookies) SetCookie(cookie *http.Cookie) {
	j.jar.SetCookies(j.origin, []*http.Cookie{cookie})
}
