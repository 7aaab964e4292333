package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionTypePayBillOnline is the only transaction type this portal sends.
const TransactionTypePayBillOnline = "CustomerPayBillOnline"

const (
	maxAccountReferenceLen = 12
	maxTransactionDescLen  = 13
)

// InvalidTokenCode is the errorCode Daraja returns for an expired or unknown
// bearer token.
const InvalidTokenCode = "404.001.03"

var payerPhonePattern = regexp.MustCompile(`^254[17]\d{8}$`)

// tokenInvalidator is implemented by token sources that keep state between
// pushes.
type tokenInvalidator interface {
	Invalidate()
}

// PushRequest is the STK push body. Field names are fixed by Daraja.
type PushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// PushInput is what a caller knows about one payment; the client fills in the
// credentials, timestamp and protocol constants.
type PushInput struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
	CallbackURL      string
}

// Client talks to the Daraja STK push endpoint. It never retries.
type Client struct {
	ShortCode  string
	PassKey    string
	StkPushURL string
	Location   *time.Location

	Tokens     TokenSource
	HTTPClient *http.Client

	now func() time.Time
}

// NewClient wires a client and its token policy from cfg.
func NewClient(cfg *Config) *Client {
	signer := NewSigner(cfg.ConsumerKey, cfg.ConsumerSecret, cfg.TokenURL, cfg.HTTPTimeout)

	var tokens TokenSource = NewPerRequestTokens(signer)
	if cfg.CacheTokens {
		tokens = NewCachedTokens(signer, cfg.TokenMargin)
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &Client{
		ShortCode:  cfg.ShortCode,
		PassKey:    cfg.PassKey,
		StkPushURL: cfg.StkPushURL,
		Location:   cfg.Location,
		Tokens:     tokens,
		HTTPClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// NewClientFromEnv creates a client from the MPESA_* environment.
func NewClientFromEnv() (*Client, *Config, error) {
	cfg, err := NewConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	return NewClient(cfg), cfg, nil
}

// InitiatePush sends one STK push request and returns the raw response body
// for any HTTP status; Daraja reports validation failures as 4xx with an
// error-shaped JSON body.
func (c *Client) InitiatePush(ctx context.Context, token string, req PushRequest) ([]byte, error) {
	body, _, err := c.initiatePush(ctx, token, req)
	return body, err
}

func (c *Client) initiatePush(ctx context.Context, token string, req PushRequest) ([]byte, int, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("encode push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.StkPushURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build push request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: push request: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read push response: %v", ErrTransport, err)
	}
	return body, resp.StatusCode, nil
}

// StkPush runs token fetch, password derivation, push and normalization.
// A returned error wraps ErrAuthRejected, ErrTransport, ErrInvalidCredentials,
// ErrInvalidAmount or ErrInvalidPhone; gateway declines come back as a Result.
func (c *Client) StkPush(ctx context.Context, in PushInput) (Result, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return Result{}, err
	}
	amount, err := AmountString(in.Amount)
	if err != nil {
		return Result{}, err
	}

	timestamp := Timestamp(c.clock(), c.Location)
	password, err := DerivePassword(c.ShortCode, c.PassKey, timestamp)
	if err != nil {
		return Result{}, err
	}

	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return Result{}, err
	}

	raw, status, err := c.initiatePush(ctx, token, PushRequest{
		BusinessShortCode: c.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   TransactionTypePayBillOnline,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       in.CallbackURL,
		AccountReference:  truncate(in.AccountReference, maxAccountReferenceLen),
		TransactionDesc:   truncate(in.Description, maxTransactionDescLen),
	})
	if err != nil {
		return Result{}, err
	}

	res := Normalize(raw)
	if status == http.StatusUnauthorized || (res.Kind == ResultRejected && res.Rejected.Code == InvalidTokenCode) {
		if inv, ok := c.Tokens.(tokenInvalidator); ok {
			inv.Invalidate()
		}
	}
	return res, nil
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// AmountString rounds up to the next whole unit; the gateway only takes
// integers and undercharging is not allowed.
func AmountString(amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return strconv.FormatInt(amount.Ceil().IntPart(), 10), nil
}

// NormalizePhone converts local (07.., 7..) and international (+254..) Safaricom
// numbers to the 2547XXXXXXXX/2541XXXXXXXX form the gateway expects.
func NormalizePhone(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(strings.TrimSpace(phone))
	if p == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
		}
	}
	switch {
	case len(p) == 10 && p[0] == '0':
		p = "254" + p[1:]
	case len(p) == 9 && (p[0] == '7' || p[0] == '1'):
		p = "254" + p
	}
	if !payerPhonePattern.MatchString(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	return p, nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
