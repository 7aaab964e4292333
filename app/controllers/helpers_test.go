package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/ManuelReschke/SubsPortal/app/repository"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/billing"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/mpesa"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/payment"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/statistics"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/usercontext"
)

const testCallbackSecret = "test-callback-secret"

type fakeGateway struct {
	mu     sync.Mutex
	calls  []mpesa.PushInput
	result mpesa.Result
}

func (g *fakeGateway) StkPush(ctx context.Context, in mpesa.PushInput) (mpesa.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, in)
	return g.result, nil
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type portalFixture struct {
	db       *gorm.DB
	redis    *miniredis.Miniredis
	repos    *repository.Repositories
	billing  *billing.Service
	gateway  *fakeGateway
	attempts *payment.RedisAttemptStore
	counters *counter.Counter

	auth    *AuthController
	portal  *BillingController
	admin   *AdminController
	webhook *MpesaWebhookController
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Customer{}, &models.Service{}, &models.Subscription{}, &models.Bill{}, &models.PaymentCallbackEvent{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repos := repository.NewRepositories(db, rdb)
	svc := billing.NewServiceFromDB(db)
	gw := &fakeGateway{result: mpesa.Result{Kind: mpesa.ResultAccepted, Accepted: &mpesa.Acceptance{
		Code:              "0",
		MerchantRequestID: "m-1",
		CheckoutRequestID: "ws_1",
		CustomerMessage:   "Success. Request accepted for processing",
	}}}
	attempts := payment.NewRedisAttemptStore(rdb, time.Hour)
	tokens := payment.NewRedisActionTokens(rdb, time.Minute)
	callbacks := payment.CallbackURLs{Base: "https://portal.example/webhooks/mpesa", Secret: testCallbackSecret}
	counters := counter.New(rdb)

	return &portalFixture{
		db:       db,
		redis:    mr,
		repos:    repos,
		billing:  svc,
		gateway:  gw,
		attempts: attempts,
		counters: counters,
		auth:     NewAuthController(repos.Customer, nil),
		portal:   NewBillingController(svc, repos.Service, payment.NewInitiator(gw, svc.Repository(), attempts, tokens, callbacks), counters),
		admin:    NewAdminController(svc, repos, statistics.New(db, rdb), counters),
		webhook:  NewMpesaWebhookController(payment.NewReconciler(svc.Repository(), svc, attempts, testCallbackSecret), counters),
	}
}

// app mounts the handlers the way the router does, with uc as the
// logged-in user. A nil uc means anonymous.
func (f *portalFixture) app(uc *usercontext.UserContext) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uc != nil {
			usercontext.Set(c, *uc)
		}
		return c.Next()
	})

	app.Get("/services", f.portal.HandleServices)
	app.Get("/user/subscriptions", f.portal.HandleSubscriptions)
	app.Post("/user/subscriptions", f.portal.HandleSubscribe)
	app.Get("/user/bills", f.portal.HandleBills)
	app.Get("/user/bills/:id/pay", f.portal.HandlePayPage)
	app.Post("/user/bills/:id/pay", f.portal.HandlePay)
	app.Get("/user/reports/monthly", f.portal.HandleMonthlyReport)

	app.Get("/admin/dashboard", f.admin.HandleAdminDashboard)
	app.Get("/admin/bills", f.admin.HandleAdminBills)
	app.Post("/admin/bills/:id/paid", f.admin.HandleAdminBillMarkPaid)
	app.Post("/admin/bills/:id/unpaid", f.admin.HandleAdminBillMarkUnpaid)
	app.Get("/admin/reports/monthly", f.admin.HandleAdminMonthlyReport)
	app.Get("/admin/services", f.admin.HandleAdminServices)
	app.Post("/admin/services", f.admin.HandleAdminServiceStore)
	app.Post("/admin/services/:id/toggle", f.admin.HandleAdminServiceToggle)
	app.Post("/admin/services/:id/delete", f.admin.HandleAdminServiceDelete)
	app.Get("/admin/customers", f.admin.HandleAdminCustomers)
	app.Get("/admin/customers/:id", f.admin.HandleAdminCustomerShow)
	app.Get("/admin/subscriptions", f.admin.HandleAdminSubscriptions)
	app.Get("/admin/admins", f.admin.HandleAdminAdmins)
	app.Post("/admin/admins", f.admin.HandleAdminAdminStore)
	app.Post("/admin/admins/:id", f.admin.HandleAdminAdminUpdate)
	app.Post("/admin/admins/:id/delete", f.admin.HandleAdminAdminDelete)
	app.Get("/admin/payments/attempts", f.admin.HandleAdminPaymentAttempts)
	app.Post("/admin/payments/attempts/:id/delete", f.admin.HandleAdminPaymentAttemptDelete)
	app.Get("/admin/callbacks", f.admin.HandleAdminCallbacks)
	app.Get("/admin/callbacks/:id", f.admin.HandleAdminCallbackShow)

	app.Post("/webhooks/mpesa/:bill/:sig", f.webhook.HandleMpesaCallback)
	return app
}

func (f *portalFixture) seedCustomer(t *testing.T, email string) *models.Customer {
	t.Helper()
	c, err := models.CreateCustomer("Wanjiru", email, "0712345678", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.repos.Customer.Create(c))
	return c
}

func (f *portalFixture) seedService(t *testing.T, name, charge string) *models.Service {
	t.Helper()
	s := &models.Service{Name: name, Charge: decimal.RequireFromString(charge), DurationValue: 1, DurationUnit: models.DURATION_MONTH, Active: true}
	require.NoError(t, f.repos.Service.Create(s))
	return s
}

func (f *portalFixture) seedBill(t *testing.T, customerID, serviceID uint, amount string, billed time.Time) *models.Bill {
	t.Helper()
	b := &models.Bill{CustomerID: customerID, ServiceID: serviceID, Amount: decimal.RequireFromString(amount), BillingDate: billed}
	require.NoError(t, f.db.Omit("Service", "Customer").Create(b).Error)
	return b
}

func (f *portalFixture) bill(t *testing.T, id uint) models.Bill {
	t.Helper()
	var b models.Bill
	require.NoError(t, f.db.First(&b, id).Error)
	return b
}

func (f *portalFixture) seedAdmin(t *testing.T, email string) *models.Customer {
	t.Helper()
	a, err := models.CreateAdmin("Baraka", email, "", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.repos.Customer.Create(a))
	return a
}

func accountCtx(a *models.Customer) *usercontext.UserContext {
	return &usercontext.UserContext{CustomerID: a.ID, Name: a.Name, IsLoggedIn: true, IsAdmin: a.IsAdmin()}
}

func customerCtx(c *models.Customer) *usercontext.UserContext {
	return &usercontext.UserContext{CustomerID: c.ID, Name: c.Name, IsLoggedIn: true}
}

func adminCtx() *usercontext.UserContext {
	return &usercontext.UserContext{CustomerID: 999, Name: "Admin", IsLoggedIn: true, IsAdmin: true}
}

func doGet(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	return resp
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), "body: %s", body)
}
