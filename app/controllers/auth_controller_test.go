package controllers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/SubsPortal/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/middleware"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/session"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/usercontext"
)

func newAuthApp(t *testing.T, f *portalFixture) *fiber.App {
	t.Helper()
	session.SetSessionStore(fibersession.New())
	t.Cleanup(func() { session.SetSessionStore(nil) })

	app := fiber.New()
	app.Use(middleware.UserContextMiddleware)
	app.Post("/register", f.auth.HandleRegister)
	app.Post("/login", f.auth.HandleLogin)
	app.Post("/logout", f.auth.HandleLogout)
	app.Get("/login", f.auth.HandleAuthPage)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	return app
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	return nil
}

func whoami(t *testing.T, app *fiber.App, cookie *http.Cookie) usercontext.UserContext {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var uc usercontext.UserContext
	decodeJSON(t, resp, &uc)
	return uc
}

func TestAuth_RegisterLoginLogout(t *testing.T) {
	f := newPortalFixture(t)
	app := newAuthApp(t, f)

	resp := postForm(t, app, "/register", url.Values{
		"name":     {"Wanjiru Kamau"},
		"email":    {"Wanjiru@Example.com"},
		"phone":    {"0712345678"},
		"password": {"secret123"},
	})
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	customer, err := f.repos.Customer.GetByEmail("wanjiru@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", customer.Password)

	resp = postForm(t, app, "/login", url.Values{"email": {"wanjiru@example.com"}, "password": {"secret123"}})
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/user/bills", resp.Header.Get("Location"))
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)

	uc := whoami(t, app, cookie)
	assert.True(t, uc.IsLoggedIn)
	assert.Equal(t, customer.ID, uc.CustomerID)
	assert.False(t, uc.IsAdmin)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	assert.False(t, whoami(t, app, cookie).IsLoggedIn)
}

func TestAuth_LoginFailuresLookAlike(t *testing.T) {
	f := newPortalFixture(t)
	app := newAuthApp(t, f)
	f.seedCustomer(t, "wanjiru@example.com")

	for _, form := range []url.Values{
		{"email": {"wanjiru@example.com"}, "password": {"wrong-password"}},
		{"email": {"nobody@example.com"}, "password": {"secret123"}},
		{"email": {"not-an-email"}, "password": {"secret123"}},
	} {
		resp := postForm(t, app, "/login", form)
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	}
}

func TestAuth_RegisterRejectsDuplicateEmail(t *testing.T) {
	f := newPortalFixture(t)
	app := newAuthApp(t, f)
	f.seedCustomer(t, "wanjiru@example.com")

	resp := postForm(t, app, "/register", url.Values{
		"name":     {"Someone Else"},
		"email":    {"wanjiru@example.com"},
		"password": {"secret123"},
	})
	assert.Equal(t, "/register", resp.Header.Get("Location"))

	resp = postForm(t, app, "/register", url.Values{
		"name":     {"Short Password"},
		"email":    {"short@example.com"},
		"password": {"123"},
	})
	assert.Equal(t, "/register", resp.Header.Get("Location"))

	n, err := f.repos.Customer.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAuthPage_Anonymous(t *testing.T) {
	f := newPortalFixture(t)
	app := newAuthApp(t, f)

	var body struct {
		LoggedIn bool `json:"logged_in"`
	}
	decodeJSON(t, doGet(t, app, "/login"), &body)
	assert.False(t, body.LoggedIn)
}

func TestAuth_RegisterRequiresCaptchaWhenEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("response") == "solved" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	f := newPortalFixture(t)
	f.auth = NewAuthController(f.repos.Customer, hcaptcha.NewVerifier("site-key", "secret", srv.URL))
	app := newAuthApp(t, f)

	form := url.Values{
		"name":     {"Wanjiru Kamau"},
		"email":    {"wanjiru@example.com"},
		"password": {"secret123"},
	}
	resp := postForm(t, app, "/register", form)
	assert.Equal(t, "/register", resp.Header.Get("Location"))

	form.Set("h-captcha-response", "solved")
	resp = postForm(t, app, "/register", form)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	var page struct {
		SiteKey string `json:"hcaptcha_sitekey"`
	}
	decodeJSON(t, doGet(t, app, "/login"), &page)
	assert.Equal(t, "site-key", page.SiteKey)
}
