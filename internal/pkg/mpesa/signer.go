package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const timestampLayout = "20060102150405"

// Token is a short-lived Daraja bearer token. It is never persisted.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
	IssuedAt    time.Time
}

// ExpiresAt returns the zero time when the gateway did not report a lifetime.
func (t *Token) ExpiresAt() time.Time {
	if t == nil || t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(t.ExpiresIn)
}

// Signer derives the authorization material required by each gateway call.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	TokenURL       string

	HTTPClient *http.Client

	now func() time.Time
}

// NewSigner creates a signer with a bounded HTTP timeout.
func NewSigner(consumerKey, consumerSecret, tokenURL string, timeout time.Duration) *Signer {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		TokenURL:       tokenURL,
		HTTPClient:     &http.Client{Timeout: timeout},
		now:            time.Now,
	}
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   flexSeconds `json:"expires_in"`
}

// FetchBearerToken performs the client-credentials GET against the token URL.
func (s *Signer) FetchBearerToken(ctx context.Context) (*Token, error) {
	if strings.TrimSpace(s.ConsumerKey) == "" || strings.TrimSpace(s.ConsumerSecret) == "" {
		return nil, fmt.Errorf("%w: consumer key/secret are not configured", ErrAuthRejected)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.TokenURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build token request: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Basic "+BasicAuth(s.ConsumerKey, s.ConsumerSecret))
	req.Header.Set("Accept", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read token response: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrAuthRejected, resp.StatusCode, string(body))
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrAuthRejected, err)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, fmt.Errorf("%w: empty access_token", ErrAuthRejected)
	}

	return &Token{
		AccessToken: strings.TrimSpace(out.AccessToken),
		ExpiresIn:   time.Duration(out.ExpiresIn) * time.Second,
		IssuedAt:    s.clock(),
	}, nil
}

func (s *Signer) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func (s *Signer) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// BasicAuth returns base64("key:secret").
func BasicAuth(key, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(key + ":" + secret))
}

// DerivePassword returns base64(shortCode + passKey + timestamp).
func DerivePassword(shortCode, passKey, timestamp string) (string, error) {
	if strings.TrimSpace(shortCode) == "" || strings.TrimSpace(passKey) == "" {
		return "", ErrInvalidCredentials
	}
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp)), nil
}

// Timestamp formats t as YYYYMMDDHHMMSS in the gateway's time zone.
func Timestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(timestampLayout)
}

// flexSeconds accepts expires_in both as "3599" and 3599; Daraja sends a string.
type flexSeconds int64

func (f *flexSeconds) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expires_in %q", s)
	}
	*f = flexSeconds(n)
	return nil
}
