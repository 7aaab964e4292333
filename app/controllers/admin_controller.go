package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/ManuelReschke/SubsPortal/app/repository"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/billing"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/payment"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/statistics"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/usercontext"
)

// ============================================================================
// ADMIN CONTROLLER - Repository Pattern
// ============================================================================

const (
	adminPageSize    = 50
	dashboardDays    = 7
	dashboardMaxDays = 35
)

type serviceRequest struct {
	Name          string `form:"name" json:"name" validate:"required,min=2,max=150"`
	Description   string `form:"description" json:"description" validate:"max=2000"`
	Charge        string `form:"charge" json:"charge" validate:"required"`
	DurationValue int    `form:"duration_value" json:"duration_value" validate:"required,gte=1"`
	DurationUnit  string `form:"duration_unit" json:"duration_unit" validate:"required,oneof=HOUR DAY WEEK MONTH"`
	Active        bool   `form:"active" json:"active"`
}

func (r serviceRequest) toModel() (*models.Service, error) {
	charge, err := decimal.NewFromString(strings.TrimSpace(r.Charge))
	if err != nil {
		return nil, fmt.Errorf("invalid charge %q", r.Charge)
	}
	s := &models.Service{
		Name:          strings.TrimSpace(r.Name),
		Description:   strings.TrimSpace(r.Description),
		Charge:        charge.Round(2),
		DurationValue: r.DurationValue,
		DurationUnit:  r.DurationUnit,
		Active:        r.Active,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

type adminAccountRequest struct {
	Name     string `form:"name" json:"name" validate:"required,min=2,max=150"`
	Email    string `form:"email" json:"email" validate:"required,email,max=200"`
	Phone    string `form:"phone" json:"phone" validate:"omitempty,max=20"`
	Password string `form:"password" json:"password" validate:"omitempty,min=8,max=72"`
}

// AdminController handles the back office using repository pattern
type AdminController struct {
	billing  *billing.Service
	repos    *repository.Repositories
	stats    *statistics.Statistics
	counters *counter.Counter
}

// NewAdminController creates a new admin controller with repositories
func NewAdminController(svc *billing.Service, repos *repository.Repositories, stats *statistics.Statistics, counters *counter.Counter) *AdminController {
	return &AdminController{
		billing:  svc,
		repos:    repos,
		stats:    stats,
		counters: counters,
	}
}

// HandleAdminDashboard returns the cached portal summary and the payment
// counters of the last ?days= days.
func (ac *AdminController) HandleAdminDashboard(c *fiber.Ctx) error {
	days := queryInt(c, "days", dashboardDays)
	if days < 1 || days > dashboardMaxDays {
		days = dashboardDays
	}

	summary, err := ac.stats.GetSummary(c.UserContext())
	if err != nil {
		fiberlog.Errorf("[Admin] dashboard summary: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "dashboard_failed", "Could not load the dashboard")
	}
	daily, err := ac.counters.Daily(c.UserContext(), days)
	if err != nil {
		// counters are best effort
		fiberlog.Warnf("[Admin] dashboard counters: %v", err)
		daily = []counter.Day{}
	}

	return c.JSON(fiber.Map{
		"summary": summary,
		"daily":   daily,
		"totals":  counter.Totals(daily),
		"csrf":    csrfToken(c),
		"flash":   flash.Get(c),
	})
}

// handleError is a helper method for consistent error handling
func (ac *AdminController) handleError(c *fiber.Ctx, path, message string, err error) error {
	fiberlog.Errorf("[Admin] %s: %v", message, err)
	return redirectWithError(c, path, message+": "+err.Error())
}

// HandleAdminBills lists all customers' bills with paid/unpaid counts.
func (ac *AdminController) HandleAdminBills(c *fiber.Ctx) error {
	filter := billing.ParseBillFilter(c.Query("tab"))
	bills, err := ac.billing.AllBills(c.UserContext(), filter)
	if err != nil {
		fiberlog.Errorf("[Admin] list bills: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "bills_failed", "Could not load bills")
	}
	counts, err := ac.billing.Counts(c.UserContext(), 0)
	if err != nil {
		fiberlog.Errorf("[Admin] count bills: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "bills_failed", "Could not load bills")
	}
	return c.JSON(fiber.Map{
		"tab":    filter,
		"bills":  bills,
		"counts": counts,
		"csrf":   csrfToken(c),
		"flash":  flash.Get(c),
	})
}

func (ac *AdminController) HandleAdminBillMarkPaid(c *fiber.Ctx) error {
	return ac.setBillPaid(c, true)
}

func (ac *AdminController) HandleAdminBillMarkUnpaid(c *fiber.Ctx) error {
	return ac.setBillPaid(c, false)
}

func (ac *AdminController) setBillPaid(c *fiber.Ctx, paid bool) error {
	billID, err := parseIDParam(c, "id")
	if err != nil {
		return redirectWithError(c, "/admin/bills", "Invalid bill ID")
	}
	if err := ac.billing.SetBillPaid(c.UserContext(), billID, paid); err != nil {
		if errors.Is(err, billing.ErrBillNotFound) {
			return redirectWithError(c, "/admin/bills", "Bill not found")
		}
		return ac.handleError(c, "/admin/bills", "Error updating bill", err)
	}

	state := "unpaid"
	if paid {
		state = "paid"
	}
	fiberlog.Infof("[Admin] bill %d marked %s", billID, state)
	ac.stats.Invalidate(c.UserContext())
	return redirectWithSuccess(c, "/admin/bills", fmt.Sprintf("Bill #%d marked as %s", billID, state))
}

// HandleAdminMonthlyReport returns monthly totals for every customer, or for
// one with ?customer_id=.
func (ac *AdminController) HandleAdminMonthlyReport(c *fiber.Ctx) error {
	var customerID uint
	if raw := strings.TrimSpace(c.Query("customer_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_customer_id", "customer_id must be a number")
		}
		customerID = uint(id)
	}

	totals, err := ac.billing.MonthlyTotals(c.UserContext(), customerID)
	if err != nil {
		fiberlog.Errorf("[Admin] monthly totals: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "report_failed", "Could not build report")
	}
	counts, err := ac.billing.Counts(c.UserContext(), customerID)
	if err != nil {
		fiberlog.Errorf("[Admin] count bills: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "report_failed", "Could not build report")
	}
	return c.JSON(fiber.Map{
		"customer_id": customerID,
		"months":      totals,
		"counts":      counts,
	})
}

// ============================================================================
// SERVICES
// ============================================================================

func (ac *AdminController) HandleAdminServices(c *fiber.Ctx) error {
	services, err := ac.repos.Service.ListAll()
	if err != nil {
		fiberlog.Errorf("[Admin] list services: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "services_failed", "Could not load services")
	}
	return c.JSON(fiber.Map{
		"services": services,
		"csrf":     csrfToken(c),
		"flash":    flash.Get(c),
	})
}

func (ac *AdminController) HandleAdminServiceStore(c *fiber.Ctx) error {
	var req serviceRequest
	if err := parseRequest(c, &req); err != nil {
		return redirectWithError(c, "/admin/services", invalidFieldMessage(err))
	}
	s, err := req.toModel()
	if err != nil {
		return redirectWithError(c, "/admin/services", err.Error())
	}
	if err := ac.repos.Service.Create(s); err != nil {
		return ac.handleError(c, "/admin/services", "Error creating service", err)
	}
	fiberlog.Infof("[Admin] created service %d %q", s.ID, s.Name)
	ac.stats.Invalidate(c.UserContext())
	return redirectWithSuccess(c, "/admin/services", "Service created successfully")
}

func (ac *AdminController) HandleAdminServiceUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return redirectWithError(c, "/admin/services", "Invalid service ID")
	}
	if _, err := ac.repos.Service.GetByID(id); err != nil {
		return redirectWithError(c, "/admin/services", "Service not found")
	}

	var req serviceRequest
	if err := parseRequest(c, &req); err != nil {
		return redirectWithError(c, "/admin/services", invalidFieldMessage(err))
	}
	s, err := req.toModel()
	if err != nil {
		return redirectWithError(c, "/admin/services", err.Error())
	}
	s.ID = id
	if err := ac.repos.Service.Update(s); err != nil {
		return ac.handleError(c, "/admin/services", "Error updating service", err)
	}
	ac.stats.Invalidate(c.UserContext())
	return redirectWithSuccess(c, "/admin/services", "Service updated successfully")
}

func (ac *AdminController) HandleAdminServiceToggle(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return redirectWithError(c, "/admin/services", "Invalid service ID")
	}
	s, err := ac.repos.Service.ToggleActive(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return redirectWithError(c, "/admin/services", "Service not found")
		}
		return ac.handleError(c, "/admin/services", "Error updating service", err)
	}
	state := "deactivated"
	if s.Active {
		state = "activated"
	}
	ac.stats.Invalidate(c.UserContext())
	return redirectWithSuccess(c, "/admin/services", fmt.Sprintf("Service %q %s", s.Name, state))
}

// HandleAdminServiceDelete removes a service that was never billed. Billed
// services can only be deactivated.
func (ac *AdminController) HandleAdminServiceDelete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return redirectWithError(c, "/admin/services", "Invalid service ID")
	}
	hasBills, err := ac.repos.Service.HasBills(id)
	if err != nil {
		return ac.handleError(c, "/admin/services", "Error deleting service", err)
	}
	if hasBills {
		return redirectWithError(c, "/admin/services", "This service has bills and can only be deactivated")
	}
	if err := ac.repos.Service.Delete(id); err != nil {
		return ac.handleError(c, "/admin/services", "Error deleting service", err)
	}
	ac.stats.Invalidate(c.UserContext())
	return redirectWithSuccess(c, "/admin/services", "Service deleted successfully")
}

// ============================================================================
// CUSTOMERS
// ============================================================================

func (ac *AdminController) HandleAdminCustomers(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	customers, err := ac.repos.Customer.List((page-1)*adminPageSize, adminPageSize)
	if err != nil {
		fiberlog.Errorf("[Admin] list customers: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "customers_failed", "Could not load customers")
	}
	total, err := ac.repos.Customer.Count()
	if err != nil {
		fiberlog.Errorf("[Admin] count customers: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "customers_failed", "Could not load customers")
	}
	return c.JSON(fiber.Map{
		"customers": customers,
		"total":     total,
		"page":      page,
		"per_page":  adminPageSize,
	})
}

// HandleAdminCustomerShow returns one customer with their subscriptions,
// bills and bill counts.
func (ac *AdminController) HandleAdminCustomerShow(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "customer_not_found", "Customer not found")
	}
	customer, err := ac.repos.Customer.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "customer_not_found", "Customer not found")
		}
		fiberlog.Errorf("[Admin] load customer %d: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "customer_failed", "Could not load customer")
	}

	subs, err := ac.billing.Subscriptions(c.UserContext(), id)
	if err != nil {
		fiberlog.Errorf("[Admin] subscriptions of customer %d: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "customer_failed", "Could not load customer")
	}
	bills, err := ac.billing.CustomerBills(c.UserContext(), id, billing.BillsAll)
	if err != nil {
		fiberlog.Errorf("[Admin] bills of customer %d: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "customer_failed", "Could not load customer")
	}
	counts, err := ac.billing.Counts(c.UserContext(), id)
	if err != nil {
		fiberlog.Errorf("[Admin] count bills of customer %d: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "customer_failed", "Could not load customer")
	}

	return c.JSON(fiber.Map{
		"customer":      customer,
		"subscriptions": subs,
		"bills":         bills,
		"counts":        counts,
	})
}

// ============================================================================
// SUBSCRIPTIONS
// ============================================================================

type subscriptionItem struct {
	models.Subscription
	Active bool `json:"active"`
}

// HandleAdminSubscriptions lists every purchase with its owner and whether it
// is still running.
func (ac *AdminController) HandleAdminSubscriptions(c *fiber.Ctx) error {
	subs, err := ac.billing.AllSubscriptions(c.UserContext())
	if err != nil {
		fiberlog.Errorf("[Admin] list subscriptions: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "subscriptions_failed", "Could not load subscriptions")
	}

	now := time.Now()
	items := make([]subscriptionItem, 0, len(subs))
	active := 0
	for _, sub := range subs {
		item := subscriptionItem{Subscription: sub, Active: sub.Active(now)}
		if item.Active {
			active++
		}
		items = append(items, item)
	}
	return c.JSON(fiber.Map{
		"subscriptions": items,
		"total":         len(items),
		"active":        active,
	})
}

// ============================================================================
// ADMIN ACCOUNTS
// ============================================================================

func (ac *AdminController) HandleAdminAdmins(c *fiber.Ctx) error {
	admins, err := ac.repos.Customer.ListByRole(models.ROLE_ADMIN)
	if err != nil {
		fiberlog.Errorf("[Admin] list admins: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "admins_failed", "Could not load admins")
	}
	return c.JSON(fiber.Map{
		"admins": admins,
		"csrf":   csrfToken(c),
		"flash":  flash.Get(c),
	})
}

func (ac *AdminController) HandleAdminAdminStore(c *fiber.Ctx) error {
	var req adminAccountRequest
	if err := parseRequest(c, &req); err != nil {
		return redirectWithError(c, "/admin/admins", invalidFieldMessage(err))
	}
	if req.Password == "" {
		return redirectWithError(c, "/admin/admins", "Invalid value for field: password")
	}

	exists, err := ac.repos.Customer.EmailExists(req.Email)
	if err != nil {
		return ac.handleError(c, "/admin/admins", "Error creating admin", err)
	}
	if exists {
		return redirectWithError(c, "/admin/admins", "An account with this email already exists.")
	}

	admin, err := models.CreateAdmin(req.Name, req.Email, req.Phone, req.Password)
	if err != nil {
		return redirectWithError(c, "/admin/admins", "Please check your input.")
	}
	if err := ac.repos.Customer.Create(admin); err != nil {
		return ac.handleError(c, "/admin/admins", "Error creating admin", err)
	}
	fiberlog.Infof("[Admin] admin %d created by %d", admin.ID, usercontext.GetCustomerID(c))
	return redirectWithSuccess(c, "/admin/admins", "Admin created successfully")
}

// HandleAdminAdminUpdate edits an admin account. An empty password keeps the
// current one.
func (ac *AdminController) HandleAdminAdminUpdate(c *fiber.Ctx) error {
	admin, msg := ac.adminFromParam(c)
	if admin == nil {
		return redirectWithError(c, "/admin/admins", msg)
	}

	var req adminAccountRequest
	if err := parseRequest(c, &req); err != nil {
		return redirectWithError(c, "/admin/admins", invalidFieldMessage(err))
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != admin.Email {
		exists, err := ac.repos.Customer.EmailExists(email)
		if err != nil {
			return ac.handleError(c, "/admin/admins", "Error updating admin", err)
		}
		if exists {
			return redirectWithError(c, "/admin/admins", "An account with this email already exists.")
		}
	}

	admin.Name = strings.TrimSpace(req.Name)
	admin.Email = email
	admin.Phone = strings.TrimSpace(req.Phone)
	if req.Password != "" {
		hash, err := models.HashPassword(req.Password)
		if err != nil {
			return ac.handleError(c, "/admin/admins", "Error updating admin", err)
		}
		admin.Password = hash
	}
	if err := admin.Validate(); err != nil {
		return redirectWithError(c, "/admin/admins", "Please check your input.")
	}
	if err := ac.repos.Customer.Update(admin); err != nil {
		return ac.handleError(c, "/admin/admins", "Error updating admin", err)
	}
	return redirectWithSuccess(c, "/admin/admins", "Admin updated successfully")
}

// HandleAdminAdminDelete removes another admin account. The signed-in admin
// and the last remaining admin cannot be deleted.
func (ac *AdminController) HandleAdminAdminDelete(c *fiber.Ctx) error {
	admin, msg := ac.adminFromParam(c)
	if admin == nil {
		return redirectWithError(c, "/admin/admins", msg)
	}
	if admin.ID == usercontext.GetCustomerID(c) {
		return redirectWithError(c, "/admin/admins", "You cannot delete your own account")
	}
	n, err := ac.repos.Customer.CountByRole(models.ROLE_ADMIN)
	if err != nil {
		return ac.handleError(c, "/admin/admins", "Error deleting admin", err)
	}
	if n <= 1 {
		return redirectWithError(c, "/admin/admins", "The last admin cannot be deleted")
	}
	if err := ac.repos.Customer.Delete(admin.ID); err != nil {
		return ac.handleError(c, "/admin/admins", "Error deleting admin", err)
	}
	fiberlog.Infof("[Admin] admin %d deleted by %d", admin.ID, usercontext.GetCustomerID(c))
	return redirectWithSuccess(c, "/admin/admins", "Admin deleted successfully")
}

// adminFromParam loads the admin named by :id. On failure it returns nil and
// the flash message to show.
func (ac *AdminController) adminFromParam(c *fiber.Ctx) (*models.Customer, string) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, "Invalid admin ID"
	}
	account, err := ac.repos.Customer.GetByID(id)
	if err != nil || !account.IsAdmin() {
		return nil, "Admin not found"
	}
	return account, ""
}

// ============================================================================
// PAYMENTS
// ============================================================================

type attemptItem struct {
	Key     string           `json:"key"`
	TTL     string           `json:"ttl"`
	Attempt *payment.Attempt `json:"attempt,omitempty"`
	Raw     string           `json:"raw,omitempty"`
}

// HandleAdminPaymentAttempts lists the attempts currently held in Redis.
func (ac *AdminController) HandleAdminPaymentAttempts(c *fiber.Ctx) error {
	keys, err := ac.repos.PaymentState.ListAttemptKeys()
	if err != nil {
		fiberlog.Errorf("[Admin] list attempt keys: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "attempts_failed", "Could not load payment attempts")
	}

	items := make([]attemptItem, 0, len(keys))
	for _, key := range keys {
		val, err := ac.repos.PaymentState.GetValue(key)
		if err != nil {
			// expired between SCAN and GET
			continue
		}
		item := attemptItem{Key: key, TTL: "unknown"}
		if ttl, err := ac.repos.PaymentState.GetTTL(key); err == nil && ttl > 0 {
			item.TTL = ttl.Round(time.Second).String()
		}
		var a payment.Attempt
		if err := json.Unmarshal([]byte(val), &a); err == nil {
			item.Attempt = &a
		} else {
			item.Raw = val
		}
		items = append(items, item)
	}

	return c.JSON(fiber.Map{
		"attempts": items,
		"csrf":     csrfToken(c),
		"flash":    flash.Get(c),
	})
}

// HandleAdminPaymentAttemptDelete clears a stuck attempt so the pay view
// starts fresh. The bill is not touched.
func (ac *AdminController) HandleAdminPaymentAttemptDelete(c *fiber.Ctx) error {
	billID, err := parseIDParam(c, "id")
	if err != nil {
		return redirectWithError(c, "/admin/payments/attempts", "Invalid bill ID")
	}
	n, err := ac.repos.PaymentState.DeleteKey(payment.AttemptKey(billID))
	if err != nil {
		return ac.handleError(c, "/admin/payments/attempts", "Error deleting attempt", err)
	}
	if n == 0 {
		return redirectWithError(c, "/admin/payments/attempts", "No attempt stored for this bill")
	}
	return redirectWithSuccess(c, "/admin/payments/attempts", fmt.Sprintf("Attempt for bill #%d cleared", billID))
}

// HandleAdminCallbacks lists stored gateway callbacks. ?failed=1 shows only
// those whose processing stored an error.
func (ac *AdminController) HandleAdminCallbacks(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}

	var events []models.PaymentCallbackEvent
	var err error
	if c.QueryBool("failed") {
		events, err = ac.repos.CallbackEvent.ListFailed(adminPageSize)
	} else {
		events, err = ac.repos.CallbackEvent.List((page-1)*adminPageSize, adminPageSize)
	}
	if err != nil {
		fiberlog.Errorf("[Admin] list callbacks: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "callbacks_failed", "Could not load callbacks")
	}
	return c.JSON(fiber.Map{"callbacks": events, "page": page})
}

func (ac *AdminController) HandleAdminCallbackShow(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "callback_not_found", "Callback not found")
	}
	ev, err := ac.repos.CallbackEvent.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "callback_not_found", "Callback not found")
		}
		fiberlog.Errorf("[Admin] load callback %d: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "callback_failed", "Could not load callback")
	}
	return c.JSON(fiber.Map{"callback": ev})
}
