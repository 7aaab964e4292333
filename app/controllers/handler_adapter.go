package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SubsPortal/app/repository"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/billing"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/cache"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/database"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/env"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/mpesa"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/payment"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/statistics"
)

// Global controller instances
var (
	authController    *AuthController
	billingController *BillingController
	adminController   *AdminController
	webhookController *MpesaWebhookController
)

// InitializeAuthController initializes the global auth controller with repositories
func InitializeAuthController() {
	repos := repository.GetGlobalRepositories()
	authController = NewAuthController(repos.Customer, hcaptcha.NewVerifierFromEnv())
}

// InitializeAdminController initializes the global admin controller with repositories
func InitializeAdminController() {
	repos := repository.GetGlobalRepositories()
	db := database.GetDB()
	rdb := cache.GetClient()
	adminController = NewAdminController(billing.NewServiceFromDB(db), repos, statistics.New(db, rdb), counter.New(rdb))
}

// InitializePaymentControllers wires the M-Pesa gateway, the Redis payment
// state and the billing store into the customer and webhook controllers.
func InitializePaymentControllers() {
	repos := repository.GetGlobalRepositories()
	svc := billing.NewServiceFromDB(database.GetDB())
	rdb := cache.GetClient()

	client, cfg, err := mpesa.NewClientFromEnv()
	if err != nil {
		fiberlog.Fatalf("[Payment] gateway config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		// the portal still serves bills; pushes fail with auth_rejected
		fiberlog.Warnf("[Payment] gateway not fully configured: %v", err)
	}

	attempts := payment.NewRedisAttemptStore(rdb, env.GetEnvDuration("PAYMENT_ATTEMPT_TTL", payment.DefaultAttemptTTL))
	tokens := payment.NewRedisActionTokens(rdb, env.GetEnvDuration("PAYMENT_ACTION_TOKEN_TTL", payment.DefaultActionTokenTTL))
	callbacks := payment.CallbackURLs{Base: cfg.CallbackURL, Secret: cfg.CallbackSecret}

	initiator := payment.NewInitiator(client, svc.Repository(), attempts, tokens, callbacks)
	reconciler := payment.NewReconciler(svc.Repository(), svc, attempts, cfg.CallbackSecret)

	counters := counter.New(rdb)
	billingController = NewBillingController(svc, repos.Service, initiator, counters)
	webhookController = NewMpesaWebhookController(reconciler, counters)
}

func GetBillingController() *BillingController {
	if billingController == nil {
		InitializePaymentControllers()
	}
	return billingController
}

func GetAdminController() *AdminController {
	if adminController == nil {
		InitializeAdminController()
	}
	return adminController
}

func GetAuthController() *AuthController {
	if authController == nil {
		InitializeAuthController()
	}
	return authController
}

func GetWebhookController() *MpesaWebhookController {
	if webhookController == nil {
		InitializePaymentControllers()
	}
	return webhookController
}

// Adapter functions to maintain compatibility with existing router

func HandleAuthPage(c *fiber.Ctx) error {
	return GetAuthController().HandleAuthPage(c)
}

func HandleAuthLogin(c *fiber.Ctx) error {
	return GetAuthController().HandleLogin(c)
}

func HandleAuthRegister(c *fiber.Ctx) error {
	return GetAuthController().HandleRegister(c)
}

func HandleAuthLogout(c *fiber.Ctx) error {
	return GetAuthController().HandleLogout(c)
}

func HandleServices(c *fiber.Ctx) error {
	return GetBillingController().HandleServices(c)
}

func HandleUserSubscriptions(c *fiber.Ctx) error {
	return GetBillingController().HandleSubscriptions(c)
}

func HandleUserSubscribe(c *fiber.Ctx) error {
	return GetBillingController().HandleSubscribe(c)
}

func HandleUserBills(c *fiber.Ctx) error {
	return GetBillingController().HandleBills(c)
}

func HandleUserBillPayPage(c *fiber.Ctx) error {
	return GetBillingController().HandlePayPage(c)
}

func HandleUserBillPay(c *fiber.Ctx) error {
	return GetBillingController().HandlePay(c)
}

func HandleUserMonthlyReport(c *fiber.Ctx) error {
	return GetBillingController().HandleMonthlyReport(c)
}

func HandleMpesaCallback(c *fiber.Ctx) error {
	return GetWebhookController().HandleMpesaCallback(c)
}

func HandleAdminDashboard(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminDashboard(c)
}

func HandleAdminBills(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminBills(c)
}

func HandleAdminBillMarkPaid(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminBillMarkPaid(c)
}

func HandleAdminBillMarkUnpaid(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminBillMarkUnpaid(c)
}

func HandleAdminMonthlyReport(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminMonthlyReport(c)
}

func HandleAdminServices(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminServices(c)
}

func HandleAdminServiceStore(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminServiceStore(c)
}

func HandleAdminServiceUpdate(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminServiceUpdate(c)
}

func HandleAdminServiceToggle(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminServiceToggle(c)
}

func HandleAdminServiceDelete(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminServiceDelete(c)
}

func HandleAdminCustomers(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminCustomers(c)
}

func HandleAdminCustomerShow(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminCustomerShow(c)
}

func HandleAdminSubscriptions(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminSubscriptions(c)
}

func HandleAdminAdmins(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminAdmins(c)
}

func HandleAdminAdminStore(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminAdminStore(c)
}

func HandleAdminAdminUpdate(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminAdminUpdate(c)
}

func HandleAdminAdminDelete(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminAdminDelete(c)
}

func HandleAdminPaymentAttempts(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminPaymentAttempts(c)
}

func HandleAdminPaymentAttemptDelete(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminPaymentAttemptDelete(c)
}

func HandleAdminCallbacks(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminCallbacks(c)
}

func HandleAdminCallbackShow(c *fiber.Ctx) error {
	return GetAdminController().HandleAdminCallbackShow(c)
}
