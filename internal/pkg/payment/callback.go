package payment

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedCallback = errors.New("malformed stk callback")
	ErrInvalidSignature  = errors.New("invalid callback signature")
)

// StkCallback is the flattened result of one Daraja STK callback.
type StkCallback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        string
	ResultDesc        string
	Amount            decimal.Decimal
	ReceiptNumber     string
	TransactionDate   string
	PhoneNumber       string
}

// Success reports whether the payer completed the payment.
func (c *StkCallback) Success() bool {
	return c.ResultCode == "0"
}

type callbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        json.RawMessage `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseStkCallback decodes the Body.stkCallback envelope. Metadata items are
// only sent for successful payments.
func ParseStkCallback(raw []byte) (*StkCallback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Join(ErrMalformedCallback, err)
	}
	in := env.Body.StkCallback
	if in == nil {
		return nil, ErrMalformedCallback
	}

	cb := &StkCallback{
		MerchantRequestID: strings.TrimSpace(in.MerchantRequestID),
		CheckoutRequestID: strings.TrimSpace(in.CheckoutRequestID),
		ResultCode:        rawString(in.ResultCode),
		ResultDesc:        strings.TrimSpace(in.ResultDesc),
	}
	if cb.CheckoutRequestID == "" || cb.ResultCode == "" {
		return nil, ErrMalformedCallback
	}

	if in.CallbackMetadata != nil {
		for _, item := range in.CallbackMetadata.Item {
			v := rawString(item.Value)
			switch item.Name {
			case "Amount":
				if d, err := decimal.NewFromString(v); err == nil {
					cb.Amount = d
				}
			case "MpesaReceiptNumber":
				cb.ReceiptNumber = v
			case "TransactionDate":
				cb.TransactionDate = v
			case "PhoneNumber":
				cb.PhoneNumber = v
			}
		}
	}
	return cb, nil
}

// rawString renders a JSON string or number as text. Other values yield "".
func rawString(v json.RawMessage) string {
	s := strings.TrimSpace(string(v))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal(v, &out); err != nil {
			return ""
		}
		return strings.TrimSpace(out)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return ""
	}
	return n.String()
}
