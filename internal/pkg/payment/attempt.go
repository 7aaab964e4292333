package payment

import "time"

// State is the position of one initiation in Idle -> Validating -> Calling -> Settled.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateCalling    State = "calling"
	StateSettled    State = "settled"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Reason classifies a failed attempt.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonValidation      Reason = "validation_error"
	ReasonAuthRejected    Reason = "auth_rejected"
	ReasonTransport       Reason = "transport_failure"
	ReasonGatewayRejected Reason = "gateway_rejected"
	ReasonMalformed       Reason = "malformed_response"
	ReasonDuplicate       Reason = "duplicate_submission"
	ReasonPaymentFailed   Reason = "payment_failed"
	ReasonInternal        Reason = "internal_error"
)

// User-facing messages.
const (
	MsgNoBill         = "No bill selected for payment."
	MsgInvalidPhone   = "Please enter a valid phone number."
	MsgAlreadyPaid    = "This bill is already paid."
	MsgNoAmount       = "This bill has no payable amount."
	MsgPushSent       = "STK Push sent successfully. Check your phone."
	MsgUnknownError   = "M-Pesa reported an unknown error."
	MsgRequestFailed  = "Payment request failed. Please try again."
	MsgAuthFailed     = "Payment service is unavailable right now. Please try again later."
	MsgDuplicate      = "This payment was already submitted. Reload the page to start a new one."
	MsgPaymentTimeout = "The payment was not completed on your phone."
)

// Attempt is the ephemeral record of the latest explicit payment submission
// for one bill.
type Attempt struct {
	BillID            uint      `json:"bill_id"`
	CustomerID        uint      `json:"customer_id"`
	Phone             string    `json:"phone"`
	MerchantRequestID string    `json:"merchant_request_id,omitempty"`
	CheckoutRequestID string    `json:"checkout_request_id,omitempty"`
	State             State     `json:"state"`
	Status            Status    `json:"status"`
	Reason            Reason    `json:"reason,omitempty"`
	Message           string    `json:"message"`
	ProviderCode      string    `json:"provider_code,omitempty"`
	RawResponse       string    `json:"raw_response,omitempty"`
	Confirmed         bool      `json:"confirmed"`
	ReceiptNumber     string    `json:"receipt_number,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (a *Attempt) Succeeded() bool {
	return a != nil && a.Status == StatusSucceeded
}

func (a *Attempt) settle(status Status, reason Reason, message string, at time.Time) {
	a.State = StateSettled
	a.Status = status
	a.Reason = reason
	a.Message = message
	a.UpdatedAt = at
}
