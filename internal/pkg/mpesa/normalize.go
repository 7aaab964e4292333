package mpesa

import (
	"encoding/json"
	"strings"
)

// AcceptedCode is the only ResponseCode meaning the prompt reached the payer.
const AcceptedCode = "0"

type ResultKind int

const (
	ResultMalformed ResultKind = iota
	ResultAccepted
	ResultRejected
)

func (k ResultKind) String() string {
	switch k {
	case ResultAccepted:
		return "accepted"
	case ResultRejected:
		return "rejected"
	default:
		return "malformed"
	}
}

// Acceptance is the success-shaped response with ResponseCode "0".
type Acceptance struct {
	Code              string
	MerchantRequestID string
	CheckoutRequestID string
	Description       string
	CustomerMessage   string
}

// Rejection is either a success-shaped response with a non-zero code or the
// errorCode/errorMessage shape used for synchronous validation failures.
type Rejection struct {
	Code        string
	Description string
}

// Malformation keeps a body that matched neither schema.
type Malformation struct {
	Raw string
}

// Result is the normalized push response. Exactly one of Accepted, Rejected
// or Malformed is set, matching Kind.
type Result struct {
	Kind      ResultKind
	Accepted  *Acceptance
	Rejected  *Rejection
	Malformed *Malformation
}

// Code returns the provider code, or "" for malformed bodies.
func (r Result) Code() string {
	switch r.Kind {
	case ResultAccepted:
		return r.Accepted.Code
	case ResultRejected:
		return r.Rejected.Code
	default:
		return ""
	}
}

type successPayload struct {
	MerchantRequestID   string      `json:"MerchantRequestID"`
	CheckoutRequestID   string      `json:"CheckoutRequestID"`
	ResponseCode        *flexString `json:"ResponseCode"`
	ResponseDescription string      `json:"ResponseDescription"`
	CustomerMessage     string      `json:"CustomerMessage"`
}

type errorPayload struct {
	RequestID    string      `json:"requestId"`
	ErrorCode    *flexString `json:"errorCode"`
	ErrorMessage *string     `json:"errorMessage"`
}

// Normalize tries the success schema, then the error schema, and otherwise
// returns the raw body as a malformed result.
func Normalize(raw []byte) Result {
	var ok successPayload
	if err := json.Unmarshal(raw, &ok); err == nil && ok.ResponseCode != nil {
		code := strings.TrimSpace(string(*ok.ResponseCode))
		if code == AcceptedCode {
			return Result{Kind: ResultAccepted, Accepted: &Acceptance{
				Code:              code,
				MerchantRequestID: strings.TrimSpace(ok.MerchantRequestID),
				CheckoutRequestID: strings.TrimSpace(ok.CheckoutRequestID),
				Description:       strings.TrimSpace(ok.ResponseDescription),
				CustomerMessage:   strings.TrimSpace(ok.CustomerMessage),
			}}
		}
		return Result{Kind: ResultRejected, Rejected: &Rejection{
			Code:        code,
			Description: strings.TrimSpace(ok.ResponseDescription),
		}}
	}

	var bad errorPayload
	if err := json.Unmarshal(raw, &bad); err == nil && (bad.ErrorCode != nil || bad.ErrorMessage != nil) {
		rej := &Rejection{}
		if bad.ErrorCode != nil {
			rej.Code = strings.TrimSpace(string(*bad.ErrorCode))
		}
		if bad.ErrorMessage != nil {
			rej.Description = strings.TrimSpace(*bad.ErrorMessage)
		}
		return Result{Kind: ResultRejected, Rejected: rej}
	}

	return Result{Kind: ResultMalformed, Malformed: &Malformation{Raw: string(raw)}}
}

// flexString accepts JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
		*f = flexString(out)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
