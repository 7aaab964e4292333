package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SubsPortal/internal/pkg/billing"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/payment"
)

// MpesaWebhookController receives Daraja STK callbacks. Routes carry no CSRF
// protection; trust comes from the signed bill reference in the path.
type MpesaWebhookController struct {
	reconciler *payment.Reconciler
	counters   *counter.Counter
}

func NewMpesaWebhookController(reconciler *payment.Reconciler, counters *counter.Counter) *MpesaWebhookController {
	return &MpesaWebhookController{reconciler: reconciler, counters: counters}
}

func (wc *MpesaWebhookController) count(ctx context.Context, event string) {
	if err := wc.counters.Add(ctx, counter.EventCallbackPrefix+event); err != nil {
		fiberlog.Warnf("[Reconcile] counter: %v", err)
	}
}

// HandleMpesaCallback answers Daraja with ResultCode 0 once the callback is
// stored, including duplicates and failed payments, so it stops retrying.
// Untrusted callbacks get 401 and internal failures 500.
func (wc *MpesaWebhookController) HandleMpesaCallback(c *fiber.Ctx) error {
	raw := append([]byte(nil), c.BodyRaw()...)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := wc.reconciler.HandleCallback(ctx, payment.CallbackInput{
		BillRef:   c.Params("bill"),
		Signature: c.Params("sig"),
		Raw:       raw,
	})
	if err != nil && errors.Is(err, billing.ErrBillNotFound) {
		// stored with the error for the back office; retrying cannot help
		fiberlog.Warnf("[Reconcile] callback for unknown bill_ref=%s", c.Params("bill"))
		wc.count(ctx, "unknown_bill")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"ResultCode": 0,
			"ResultDesc": "Accepted",
		})
	}
	if err != nil {
		if payment.IsRejected(err) {
			fiberlog.Warnf("[Reconcile] rejected callback from %s: %v", GetClientIP(c), err)
			wc.count(ctx, string(payment.OutcomeRejected))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ResultCode": 1,
				"ResultDesc": "Rejected",
			})
		}
		fiberlog.Errorf("[Reconcile] callback bill_ref=%s failed: %v", c.Params("bill"), err)
		wc.count(ctx, "error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ResultCode": 1,
			"ResultDesc": "Failed",
		})
	}

	fiberlog.Infof("[Reconcile] callback bill_ref=%s outcome=%s", c.Params("bill"), outcome)
	wc.count(ctx, string(outcome))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}
