package payment

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/billing"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/mpesa"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Gateway sends one STK push. *mpesa.Client implements it.
type Gateway interface {
	StkPush(ctx context.Context, in mpesa.PushInput) (mpesa.Result, error)
}

// BillReader resolves bills for validation. billing.Repository implements it.
type BillReader interface {
	FindBill(id uint) (*models.Bill, error)
}

// Submission is one explicit "pay" action from a customer.
type Submission struct {
	ActionToken string
	CustomerID  uint
	BillID      uint
	Phone       string
}

// Initiator fires at most one push per explicit submission.
type Initiator struct {
	gateway   Gateway
	bills     BillReader
	attempts  AttemptStore
	tokens    ActionTokens
	callbacks CallbackURLs
	now       func() time.Time
}

func NewInitiator(gateway Gateway, bills BillReader, attempts AttemptStore, tokens ActionTokens, callbacks CallbackURLs) *Initiator {
	return &Initiator{
		gateway:   gateway,
		bills:     bills,
		attempts:  attempts,
		tokens:    tokens,
		callbacks: callbacks,
		now:       time.Now,
	}
}

// IssueActionToken is called when the pay view is rendered.
func (i *Initiator) IssueActionToken(ctx context.Context, customerID, billID uint) (string, error) {
	return i.tokens.Issue(ctx, ActionScope(customerID, billID))
}

// Current returns the last stored attempt for a bill, or nil.
func (i *Initiator) Current(ctx context.Context, billID uint) (*Attempt, error) {
	return i.attempts.Get(ctx, billID)
}

// Initiate runs one submission to a settled attempt. It never returns an
// error; failures are described by the attempt's Status, Reason and Message.
// The bill itself is never marked paid here.
func (i *Initiator) Initiate(ctx context.Context, sub Submission) *Attempt {
	now := i.now()
	a := &Attempt{
		BillID:     sub.BillID,
		CustomerID: sub.CustomerID,
		Phone:      sub.Phone,
		State:      StateIdle,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	ok, err := i.tokens.Consume(ctx, ActionScope(sub.CustomerID, sub.BillID), sub.ActionToken)
	if err != nil {
		fiberlog.Errorf("[Payment] consume action token bill=%d: %v", sub.BillID, err)
		a.settle(StatusFailed, ReasonInternal, MsgRequestFailed, i.now())
		return a
	}
	if !ok {
		fiberlog.Warnf("[Payment] duplicate or replayed submission bill=%d customer=%d", sub.BillID, sub.CustomerID)
		a.settle(StatusFailed, ReasonDuplicate, MsgDuplicate, i.now())
		return a
	}

	a.State = StateValidating
	if sub.BillID == 0 {
		a.settle(StatusFailed, ReasonValidation, MsgNoBill, i.now())
		return a
	}
	bill, err := i.bills.FindBill(sub.BillID)
	if err != nil {
		if errors.Is(err, billing.ErrBillNotFound) {
			a.settle(StatusFailed, ReasonValidation, MsgNoBill, i.now())
			return a
		}
		fiberlog.Errorf("[Payment] load bill %d: %v", sub.BillID, err)
		a.settle(StatusFailed, ReasonInternal, MsgRequestFailed, i.now())
		return a
	}
	if bill.CustomerID != sub.CustomerID {
		// Not stored: the attempt slot belongs to the bill's owner.
		a.settle(StatusFailed, ReasonValidation, MsgNoBill, i.now())
		return a
	}
	if bill.Paid {
		return i.finish(ctx, a, StatusFailed, ReasonValidation, MsgAlreadyPaid)
	}
	phone, err := mpesa.NormalizePhone(sub.Phone)
	if err != nil {
		return i.finish(ctx, a, StatusFailed, ReasonValidation, MsgInvalidPhone)
	}
	a.Phone = phone

	a.State = StateCalling
	res, err := i.gateway.StkPush(ctx, mpesa.PushInput{
		Phone:            phone,
		Amount:           bill.Amount,
		AccountReference: bill.Reference(),
		Description:      bill.Service.Name,
		CallbackURL:      i.callbacks.For(bill.ID),
	})
	if err != nil {
		fiberlog.Errorf("[Payment] stk push bill=%d: %v", bill.ID, err)
		switch {
		case errors.Is(err, mpesa.ErrAuthRejected):
			return i.finish(ctx, a, StatusFailed, ReasonAuthRejected, MsgAuthFailed)
		case errors.Is(err, mpesa.ErrInvalidPhone):
			return i.finish(ctx, a, StatusFailed, ReasonValidation, MsgInvalidPhone)
		case errors.Is(err, mpesa.ErrInvalidAmount):
			return i.finish(ctx, a, StatusFailed, ReasonValidation, MsgNoAmount)
		case errors.Is(err, mpesa.ErrInvalidCredentials):
			return i.finish(ctx, a, StatusFailed, ReasonInternal, MsgAuthFailed)
		default:
			return i.finish(ctx, a, StatusFailed, ReasonTransport, MsgRequestFailed)
		}
	}

	a.ProviderCode = res.Code()
	switch res.Kind {
	case mpesa.ResultAccepted:
		a.MerchantRequestID = res.Accepted.MerchantRequestID
		a.CheckoutRequestID = res.Accepted.CheckoutRequestID
		msg := res.Accepted.CustomerMessage
		if msg == "" {
			msg = MsgPushSent
		}
		fiberlog.Infof("[Payment] push accepted bill=%d checkout=%s", bill.ID, a.CheckoutRequestID)
		return i.finish(ctx, a, StatusSucceeded, ReasonNone, msg)
	case mpesa.ResultRejected:
		msg := res.Rejected.Description
		if msg == "" {
			msg = MsgUnknownError
		}
		fiberlog.Warnf("[Payment] push rejected bill=%d code=%s: %s", bill.ID, res.Rejected.Code, msg)
		return i.finish(ctx, a, StatusFailed, ReasonGatewayRejected, msg)
	default:
		a.RawResponse = res.Malformed.Raw
		fiberlog.Errorf("[Payment] unexpected push response bill=%d: %s", bill.ID, res.Malformed.Raw)
		return i.finish(ctx, a, StatusFailed, ReasonMalformed, MsgRequestFailed)
	}
}

// finish settles the attempt and replaces the stored one for the bill.
func (i *Initiator) finish(ctx context.Context, a *Attempt, status Status, reason Reason, message string) *Attempt {
	a.settle(status, reason, message, i.now())
	if err := i.attempts.Save(ctx, a); err != nil {
		fiberlog.Errorf("[Payment] store attempt bill=%d: %v", a.BillID, err)
	}
	return a
}
