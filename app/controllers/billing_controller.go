package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/ManuelReschke/SubsPortal/app/repository"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/billing"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/payment"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/usercontext"
)

// gateway calls are bounded by the mpesa client timeouts; this covers the
// token fetch plus the push.
const payRequestTimeout = 70 * time.Second

type subscribeRequest struct {
	ServiceID uint `form:"service_id" json:"service_id" validate:"required,gt=0"`
}

type payRequest struct {
	Phone       string `form:"phone" json:"phone" validate:"required,max=32"`
	ActionToken string `form:"action_token" json:"action_token" validate:"required"`
}

// BillingController serves the customer side: catalogue, subscriptions,
// bills and the pay action.
type BillingController struct {
	billing   *billing.Service
	services  repository.ServiceRepository
	initiator *payment.Initiator
	counters  *counter.Counter
}

func NewBillingController(svc *billing.Service, services repository.ServiceRepository, initiator *payment.Initiator, counters *counter.Counter) *BillingController {
	return &BillingController{
		billing:   svc,
		services:  services,
		initiator: initiator,
		counters:  counters,
	}
}

// HandleServices lists active services. Logged-in customers can pass
// ?available=1 to hide what they already bought.
func (bc *BillingController) HandleServices(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var err error
	var services []models.Service
	if userCtx.IsLoggedIn && c.QueryBool("available") {
		services, err = bc.services.ListNotSubscribed(userCtx.CustomerID)
	} else {
		services, err = bc.services.ListActive()
	}
	if err != nil {
		fiberlog.Errorf("[Billing] list services: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "services_failed", "Could not load services")
	}
	return c.JSON(fiber.Map{"services": services})
}

func (bc *BillingController) HandleSubscriptions(c *fiber.Ctx) error {
	subs, err := bc.billing.Subscriptions(c.UserContext(), usercontext.GetCustomerID(c))
	if err != nil {
		fiberlog.Errorf("[Billing] list subscriptions: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "subscriptions_failed", "Could not load subscriptions")
	}

	now := time.Now()
	type row struct {
		ID           uint      `json:"id"`
		ServiceID    uint      `json:"service_id"`
		ServiceName  string    `json:"service_name"`
		PurchaseDate time.Time `json:"purchase_date"`
		ExpiryDate   time.Time `json:"expiry_date"`
		Active       bool      `json:"active"`
	}
	rows := make([]row, 0, len(subs))
	for i := range subs {
		rows = append(rows, row{
			ID:           subs[i].ID,
			ServiceID:    subs[i].ServiceID,
			ServiceName:  subs[i].Service.Name,
			PurchaseDate: subs[i].PurchaseDate,
			ExpiryDate:   subs[i].ExpiryDate,
			Active:       subs[i].Active(now),
		})
	}
	return c.JSON(fiber.Map{"subscriptions": rows, "flash": flash.Get(c)})
}

// HandleSubscribe buys a service: a subscription plus one unpaid bill.
func (bc *BillingController) HandleSubscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := parseRequest(c, &req); err != nil {
		return redirectWithError(c, "/services", "Please choose a service.")
	}

	customerID := usercontext.GetCustomerID(c)
	_, bill, err := bc.billing.Subscribe(c.UserContext(), customerID, req.ServiceID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrServiceNotFound), errors.Is(err, billing.ErrServiceInactive):
			return redirectWithError(c, "/services", "This service is not available.")
		default:
			fiberlog.Errorf("[Billing] subscribe customer=%d service=%d: %v", customerID, req.ServiceID, err)
			return redirectWithError(c, "/services", "Subscription failed. Please try again.")
		}
	}

	fiberlog.Infof("[Billing] customer %d subscribed to service %d, bill %d", customerID, req.ServiceID, bill.ID)
	msg := fmt.Sprintf("Subscribed to %s. Your bill of %s is ready for payment.", bill.Service.Name, bill.Amount.StringFixed(2))
	return redirectWithSuccess(c, fmt.Sprintf("/user/bills/%d/pay", bill.ID), msg)
}

// HandleBills lists the customer's bills, split by ?tab=paid|unpaid.
func (bc *BillingController) HandleBills(c *fiber.Ctx) error {
	customerID := usercontext.GetCustomerID(c)
	filter := billing.ParseBillFilter(c.Query("tab"))

	bills, err := bc.billing.CustomerBills(c.UserContext(), customerID, filter)
	if err != nil {
		fiberlog.Errorf("[Billing] list bills customer=%d: %v", customerID, err)
		return jsonError(c, fiber.StatusInternalServerError, "bills_failed", "Could not load bills")
	}
	counts, err := bc.billing.Counts(c.UserContext(), customerID)
	if err != nil {
		fiberlog.Errorf("[Billing] count bills customer=%d: %v", customerID, err)
		return jsonError(c, fiber.StatusInternalServerError, "bills_failed", "Could not load bills")
	}

	return c.JSON(fiber.Map{
		"tab":    filter,
		"bills":  bills,
		"counts": counts,
		"flash":  flash.Get(c),
	})
}

// HandlePayPage renders the pay view. It shows the last attempt and issues a
// fresh action token but never contacts the gateway, so reloading it is safe.
func (bc *BillingController) HandlePayPage(c *fiber.Ctx) error {
	billID, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "bill_not_found", payment.MsgNoBill)
	}
	customerID := usercontext.GetCustomerID(c)

	bill, err := bc.billing.CustomerBill(c.UserContext(), customerID, billID)
	if err != nil {
		if errors.Is(err, billing.ErrBillNotFound) {
			return jsonError(c, fiber.StatusNotFound, "bill_not_found", payment.MsgNoBill)
		}
		fiberlog.Errorf("[Payment] load bill %d: %v", billID, err)
		return jsonError(c, fiber.StatusInternalServerError, "bill_failed", "Could not load bill")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	attempt, err := bc.initiator.Current(ctx, bill.ID)
	if err != nil {
		fiberlog.Warnf("[Payment] load attempt bill=%d: %v", bill.ID, err)
	}

	token := ""
	if !bill.Paid {
		token, err = bc.initiator.IssueActionToken(ctx, customerID, bill.ID)
		if err != nil {
			fiberlog.Errorf("[Payment] issue action token bill=%d: %v", bill.ID, err)
			return jsonError(c, fiber.StatusServiceUnavailable, "payment_unavailable", payment.MsgRequestFailed)
		}
	}

	return c.JSON(fiber.Map{
		"bill":         bill,
		"reference":    bill.Reference(),
		"attempt":      attempt,
		"action_token": token,
		"csrf":         csrfToken(c),
		"flash":        flash.Get(c),
	})
}

// HandlePay is the explicit pay action. The outcome is flashed and the
// browser is sent back to the pay view with 303.
func (bc *BillingController) HandlePay(c *fiber.Ctx) error {
	billID, err := parseIDParam(c, "id")
	if err != nil {
		return redirectWithError(c, "/user/bills", payment.MsgNoBill)
	}
	back := fmt.Sprintf("/user/bills/%d/pay", billID)

	var req payRequest
	if err := parseRequest(c, &req); err != nil {
		if firstInvalidField(err) == "actiontoken" {
			return redirectWithError(c, back, payment.MsgDuplicate)
		}
		return redirectWithError(c, back, payment.MsgInvalidPhone)
	}

	ctx, cancel := context.WithTimeout(context.Background(), payRequestTimeout)
	defer cancel()

	attempt := bc.initiator.Initiate(ctx, payment.Submission{
		ActionToken: req.ActionToken,
		CustomerID:  usercontext.GetCustomerID(c),
		BillID:      billID,
		Phone:       req.Phone,
	})
	bc.count(ctx, attempt)
	if attempt.Succeeded() {
		return redirectWithSuccess(c, back, attempt.Message)
	}
	return redirectWithError(c, back, attempt.Message)
}

func (bc *BillingController) count(ctx context.Context, a *payment.Attempt) {
	if err := bc.counters.Add(ctx, counter.EventInitiatePrefix+string(a.Status)); err != nil {
		fiberlog.Warnf("[Payment] counter: %v", err)
		return
	}
	if a.Reason != payment.ReasonNone {
		if err := bc.counters.Add(ctx, counter.EventReasonPrefix+string(a.Reason)); err != nil {
			fiberlog.Warnf("[Payment] counter: %v", err)
		}
	}
}

// HandleMonthlyReport sums the customer's bills per billing month.
func (bc *BillingController) HandleMonthlyReport(c *fiber.Ctx) error {
	customerID := usercontext.GetCustomerID(c)
	totals, err := bc.billing.MonthlyTotals(c.UserContext(), customerID)
	if err != nil {
		fiberlog.Errorf("[Billing] monthly totals customer=%d: %v", customerID, err)
		return jsonError(c, fiber.StatusInternalServerError, "report_failed", "Could not build report")
	}
	counts, err := bc.billing.Counts(c.UserContext(), customerID)
	if err != nil {
		fiberlog.Errorf("[Billing] count bills customer=%d: %v", customerID, err)
		return jsonError(c, fiber.StatusInternalServerError, "report_failed", "Could not build report")
	}
	return c.JSON(fiber.Map{"months": totals, "counts": counts})
}
