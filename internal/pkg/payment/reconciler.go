package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/billing"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Outcome describes what a callback did to the bill.
type Outcome string

const (
	OutcomeMarkedPaid    Outcome = "marked_paid"
	OutcomeAlreadyPaid   Outcome = "already_paid"
	OutcomePaymentFailed Outcome = "payment_failed"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeRejected      Outcome = "rejected"
)

// BillPayer flips a bill to paid. billing.Repository implements it.
type BillPayer interface {
	FindBill(id uint) (*models.Bill, error)
	MarkBillPaid(id uint, receipt string, at time.Time) (bool, error)
}

// CallbackRecorder persists callback events. *billing.Service implements it.
type CallbackRecorder interface {
	RecordCallbackEvent(ctx context.Context, in billing.CallbackEventInput) (bool, *models.PaymentCallbackEvent, error)
	MarkCallbackProcessed(ctx context.Context, eventID uint, processingErr error) error
}

// Confirmation identifies a completed payment. BillID wins over
// CheckoutRequestID when both are set.
type Confirmation struct {
	BillID            uint
	CheckoutRequestID string
	ReceiptNumber     string
}

// Reconciler applies asynchronous gateway confirmations to bills. It does
// not need an attempt to exist.
type Reconciler struct {
	bills    BillPayer
	events   CallbackRecorder
	attempts AttemptStore
	secret   string
	now      func() time.Time
}

func NewReconciler(bills BillPayer, events CallbackRecorder, attempts AttemptStore, callbackSecret string) *Reconciler {
	return &Reconciler{
		bills:    bills,
		events:   events,
		attempts: attempts,
		secret:   callbackSecret,
		now:      time.Now,
	}
}

// OnPaymentConfirmed marks the referenced bill paid. Confirming an already
// paid bill returns OutcomeAlreadyPaid and no error.
func (r *Reconciler) OnPaymentConfirmed(ctx context.Context, c Confirmation) (Outcome, error) {
	billID := c.BillID
	if billID == 0 && c.CheckoutRequestID != "" {
		id, err := r.attempts.BillIDForCheckout(ctx, c.CheckoutRequestID)
		if err != nil {
			fiberlog.Errorf("[Reconcile] checkout lookup %s: %v", c.CheckoutRequestID, err)
			return "", err
		}
		billID = id
	}
	if billID == 0 {
		fiberlog.Errorf("[Reconcile] no bill for checkout=%q", c.CheckoutRequestID)
		return "", billing.ErrBillNotFound
	}

	changed, err := r.bills.MarkBillPaid(billID, c.ReceiptNumber, r.now())
	if err != nil {
		fiberlog.Errorf("[Reconcile] mark bill %d paid: %v", billID, err)
		return "", err
	}

	r.confirmAttempt(ctx, billID, c)

	if !changed {
		fiberlog.Infof("[Reconcile] bill %d already paid", billID)
		return OutcomeAlreadyPaid, nil
	}
	fiberlog.Infof("[Reconcile] bill %d marked paid receipt=%s", billID, c.ReceiptNumber)
	return OutcomeMarkedPaid, nil
}

func (r *Reconciler) confirmAttempt(ctx context.Context, billID uint, c Confirmation) {
	a, err := r.attempts.Get(ctx, billID)
	if err != nil || a == nil {
		return
	}
	if c.CheckoutRequestID != "" && a.CheckoutRequestID != c.CheckoutRequestID {
		return
	}
	a.Confirmed = true
	a.ReceiptNumber = c.ReceiptNumber
	a.UpdatedAt = r.now()
	if err := r.attempts.Save(ctx, a); err != nil {
		fiberlog.Warnf("[Reconcile] update attempt bill=%d: %v", billID, err)
	}
}

func (r *Reconciler) failAttempt(ctx context.Context, billID uint, cb *StkCallback) {
	a, err := r.attempts.Get(ctx, billID)
	if err != nil || a == nil || a.CheckoutRequestID != cb.CheckoutRequestID {
		return
	}
	msg := cb.ResultDesc
	if msg == "" {
		msg = MsgPaymentTimeout
	}
	a.ProviderCode = cb.ResultCode
	a.settle(StatusFailed, ReasonPaymentFailed, msg, r.now())
	if err := r.attempts.Save(ctx, a); err != nil {
		fiberlog.Warnf("[Reconcile] update attempt bill=%d: %v", billID, err)
	}
}

// CallbackInput is one inbound callback request. BillRef and Signature come
// from the callback URL path.
type CallbackInput struct {
	BillRef   string
	Signature string
	Raw       []byte
}

// HandleCallback records the callback and applies it. Unsigned or
// unparseable callbacks are stored for inspection but never touch a bill.
func (r *Reconciler) HandleCallback(ctx context.Context, in CallbackInput) (Outcome, error) {
	billID := parseBillRef(in.BillRef)
	signed := VerifyBillReference(r.secret, billID, in.Signature)

	cb, parseErr := ParseStkCallback(in.Raw)
	if parseErr != nil || !signed {
		procErr := ErrInvalidSignature
		if parseErr != nil {
			procErr = ErrMalformedCallback
		}
		rec := billing.CallbackEventInput{
			Provider:          models.PaymentProviderMpesa,
			CheckoutRequestID: "unverified:" + payloadHash(in.Raw),
			BillID:            billID,
			PayloadJSON:       string(in.Raw),
			SignatureValid:    signed,
		}
		if cb != nil {
			rec.ResultCode = cb.ResultCode
			rec.ResultDesc = cb.ResultDesc
		}
		if _, ev, err := r.events.RecordCallbackEvent(ctx, rec); err == nil {
			if err := r.events.MarkCallbackProcessed(ctx, ev.ID, procErr); err != nil {
				fiberlog.Errorf("[Reconcile] mark rejected callback event=%d: %v", ev.ID, err)
			}
		} else {
			fiberlog.Errorf("[Reconcile] record rejected callback: %v", err)
		}
		fiberlog.Warnf("[Reconcile] rejected callback bill_ref=%q: %v", in.BillRef, procErr)
		return OutcomeRejected, procErr
	}

	created, ev, err := r.events.RecordCallbackEvent(ctx, billing.CallbackEventInput{
		Provider:          models.PaymentProviderMpesa,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		ReceiptNumber:     cb.ReceiptNumber,
		Amount:            cb.Amount,
		AmountMismatch:    r.amountMismatch(billID, cb),
		BillID:            billID,
		PayloadJSON:       string(in.Raw),
		SignatureValid:    true,
	})
	if err != nil {
		fiberlog.Errorf("[Reconcile] record callback %s: %v", cb.CheckoutRequestID, err)
		return "", err
	}
	if !created && ev.ProcessedAt != nil && ev.ProcessingError == "" {
		return OutcomeDuplicate, nil
	}

	if !cb.Success() {
		fiberlog.Infof("[Reconcile] payment failed bill=%d code=%s: %s", billID, cb.ResultCode, cb.ResultDesc)
		r.failAttempt(ctx, billID, cb)
		if err := r.events.MarkCallbackProcessed(ctx, ev.ID, nil); err != nil {
			fiberlog.Errorf("[Reconcile] mark callback %d processed: %v", ev.ID, err)
		}
		return OutcomePaymentFailed, nil
	}

	outcome, procErr := r.OnPaymentConfirmed(ctx, Confirmation{
		BillID:            billID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ReceiptNumber:     cb.ReceiptNumber,
	})
	if err := r.events.MarkCallbackProcessed(ctx, ev.ID, procErr); err != nil {
		fiberlog.Errorf("[Reconcile] mark callback %d processed: %v", ev.ID, err)
	}
	return outcome, procErr
}

// amountMismatch reports whether a successful callback paid something other
// than the whole-unit amount pushed for the bill. The bill is still marked
// paid; the flag is for the back office.
func (r *Reconciler) amountMismatch(billID uint, cb *StkCallback) bool {
	if !cb.Success() || cb.Amount.IsZero() || billID == 0 {
		return false
	}
	bill, err := r.bills.FindBill(billID)
	if err != nil {
		return false
	}
	charged := bill.Amount.Ceil()
	if cb.Amount.Equal(charged) {
		return false
	}
	fiberlog.Warnf("[Reconcile] amount mismatch bill=%d charged=%s paid=%s checkout=%s",
		billID, charged.String(), cb.Amount.String(), cb.CheckoutRequestID)
	return true
}

func parseBillRef(ref string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(ref), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func payloadHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// IsRejected reports whether err means the callback was not trusted.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrMalformedCallback)
}
