package mpesa

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ManuelReschke/SubsPortal/internal/pkg/env"
)

const (
	defaultTokenURL    = "https://sandbox.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"
	defaultStkPushURL  = "https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest"
	defaultTimezone    = "Africa/Nairobi"
	defaultHTTPTimeout = 30 * time.Second
	defaultTokenMargin = 60 * time.Second
)

// Config holds the Daraja credentials and endpoints for one paybill short code.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string

	TokenURL    string
	StkPushURL  string
	CallbackURL string
	// CallbackSecret signs the bill reference embedded in CallbackURL.
	CallbackSecret string

	Location    *time.Location
	HTTPTimeout time.Duration

	// CacheTokens switches from one token fetch per push to reusing a token
	// until shortly before it expires.
	CacheTokens bool
	TokenMargin time.Duration
}

// NewConfigFromEnv reads the MPESA_* variables.
func NewConfigFromEnv() (*Config, error) {
	tz := strings.TrimSpace(env.GetEnv("MPESA_TIMEZONE", defaultTimezone))
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid MPESA_TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		ConsumerKey:    strings.TrimSpace(env.GetEnv("MPESA_CONSUMER_KEY", "")),
		ConsumerSecret: strings.TrimSpace(env.GetEnv("MPESA_CONSUMER_SECRET", "")),
		ShortCode:      strings.TrimSpace(env.GetEnv("MPESA_SHORT_CODE", "")),
		PassKey:        strings.TrimSpace(env.GetEnv("MPESA_PASSKEY", "")),
		TokenURL:       strings.TrimSpace(env.GetEnv("MPESA_TOKEN_URL", defaultTokenURL)),
		StkPushURL:     strings.TrimSpace(env.GetEnv("MPESA_STK_PUSH_URL", defaultStkPushURL)),
		CallbackURL:    strings.TrimRight(strings.TrimSpace(env.GetEnv("MPESA_CALLBACK_URL", "")), "/"),
		CallbackSecret: strings.TrimSpace(env.GetEnv("MPESA_CALLBACK_SECRET", "")),
		Location:       loc,
		HTTPTimeout:    env.GetEnvDuration("MPESA_HTTP_TIMEOUT", defaultHTTPTimeout),
		CacheTokens:    env.GetEnvBool("MPESA_TOKEN_CACHE", false),
		TokenMargin:    env.GetEnvDuration("MPESA_TOKEN_MARGIN", defaultTokenMargin),
	}
	return cfg, nil
}

// Validate reports the first missing setting required to initiate a push.
func (c *Config) Validate() error {
	switch {
	case c.ConsumerKey == "" || c.ConsumerSecret == "":
		return errors.New("MPESA_CONSUMER_KEY/MPESA_CONSUMER_SECRET are not configured")
	case c.ShortCode == "" || c.PassKey == "":
		return errors.New("MPESA_SHORT_CODE/MPESA_PASSKEY are not configured")
	case c.CallbackURL == "":
		return errors.New("MPESA_CALLBACK_URL is not configured")
	case c.CallbackSecret == "":
		return errors.New("MPESA_CALLBACK_SECRET is not configured")
	}
	return nil
}
