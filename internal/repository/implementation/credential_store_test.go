package implementation

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"catalog-lens/internal/repository/contract"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStore(path)

	_, err := s.Get(ctx, "token")
	assert.ErrorIs(t, err, contract.ErrCredentialNotFound)

	require.NoError(t, s.Set(ctx, "token", "abc"))
	require.NoError(t, s.Set(ctx, "user", `{"role":"Admin"}`))

	// A fresh instance reads what the first one persisted.
	reopened := NewFileStore(path)
	got, err := reopened.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, `{"role":"Admin"}`, got)

	require.NoError(t, reopened.Delete(ctx, "token"))
	require.NoError(t, reopened.Delete(ctx, "token"))
	_, err = s.Get(ctx, "token")
	assert.ErrorIs(t, err, contract.ErrCredentialNotFound)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Get(context.Background(), "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, contract.ErrCredentialNotFound)
}

func TestCookieStoreWithJar(t *testing.T) {
	ctx := context.Background()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	origin, _ := url.Parse("http://kiosk.local")

	s := NewCookieStore(NewJarCookies(jar, origin), false)

	record := `{"role":"Staff","fullName":"Ana Lima"}`
	require.NoError(t, s.Set(ctx, "user", record))

	got, err := s.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, record, got)

	require.NoError(t, s.Delete(ctx, "user"))
	_, err = s.Get(ctx, "user")
	assert.ErrorIs(t, err, contract.ErrCredentialNotFound)
}

func TestCookieStoreWithFiber(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		s := NewCookieStore(NewFiberCookies(c), false)
		before, err := s.Get(c.UserContext(), "token")
		if err != nil {
			return err
		}
		if err := s.Delete(c.UserContext(), "token"); err != nil {
			return err
		}
		_, err = s.Get(c.UserContext(), "token")
		return c.SendString(before + "|" + err.Error())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "abc"})
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abc|"+contract.ErrCredentialNotFound.Error(), string(body))

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "token" && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared, "response should expire the token cookie")
}
