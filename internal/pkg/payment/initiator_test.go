package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/mpesa"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type initiatorFixture struct {
	gateway   *fakeGateway
	bills     fakeBills
	attempts  *RedisAttemptStore
	initiator *Initiator
}

func newInitiatorFixture(t *testing.T) *initiatorFixture {
	t.Helper()
	_, client := newTestRedis(t)
	f := &initiatorFixture{
		gateway: &fakeGateway{result: accepted("ws_1", "Success. Request accepted for processing")},
		bills: fakeBills{
			42: {ID: 42, CustomerID: 7, Amount: decimal.RequireFromString("1200.50"), Service: models.Service{Name: "Premium Fibre"}},
			43: {ID: 43, CustomerID: 7, Amount: decimal.NewFromInt(10), Paid: true},
			50: {ID: 50, CustomerID: 8, Amount: decimal.NewFromInt(10)},
		},
		attempts: NewRedisAttemptStore(client, time.Hour),
	}
	f.initiator = NewInitiator(f.gateway, f.bills, f.attempts, NewRedisActionTokens(client, time.Minute),
		CallbackURLs{Base: "https://portal.example/webhooks/mpesa", Secret: "s"})
	return f
}

func (f *initiatorFixture) submit(t *testing.T, customerID, billID uint, phone string) *Attempt {
	t.Helper()
	tok, err := f.initiator.IssueActionToken(context.Background(), customerID, billID)
	require.NoError(t, err)
	return f.initiator.Initiate(context.Background(), Submission{ActionToken: tok, CustomerID: customerID, BillID: billID, Phone: phone})
}

func TestInitiate_Accepted(t *testing.T) {
	f := newInitiatorFixture(t)

	a := f.submit(t, 7, 42, "0712345678")
	assert.Equal(t, StateSettled, a.State)
	assert.Equal(t, StatusSucceeded, a.Status)
	assert.Equal(t, ReasonNone, a.Reason)
	assert.Equal(t, "ws_1", a.CheckoutRequestID)
	assert.Equal(t, "Success. Request accepted for processing", a.Message)
	assert.Equal(t, "254712345678", a.Phone)

	require.Equal(t, 1, f.gateway.count())
	push := f.gateway.calls[0]
	assert.Equal(t, "BILL-42", push.AccountReference)
	assert.Equal(t, "Premium Fibre", push.Description)
	assert.Equal(t, "https://portal.example/webhooks/mpesa/42/"+SignBillReference("s", 42), push.CallbackURL)
	assert.True(t, push.Amount.Equal(decimal.RequireFromString("1200.50")))

	stored, err := f.initiator.Current(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ws_1", stored.CheckoutRequestID)

	assert.False(t, f.bills[42].Paid, "initiation must never mark the bill paid")
}

func TestInitiate_DefaultSuccessMessage(t *testing.T) {
	f := newInitiatorFixture(t)
	f.gateway.result = accepted("ws_2", "")

	a := f.submit(t, 7, 42, "254712345678")
	assert.Equal(t, MsgPushSent, a.Message)
}

func TestInitiate_ReplayNeverFiresTwice(t *testing.T) {
	f := newInitiatorFixture(t)
	ctx := context.Background()

	tok, err := f.initiator.IssueActionToken(ctx, 7, 42)
	require.NoError(t, err)
	sub := Submission{ActionToken: tok, CustomerID: 7, BillID: 42, Phone: "0712345678"}

	first := f.initiator.Initiate(ctx, sub)
	require.Equal(t, StatusSucceeded, first.Status)

	for i := 0; i < 5; i++ {
		again := f.initiator.Initiate(ctx, sub)
		assert.Equal(t, StatusFailed, again.Status)
		assert.Equal(t, ReasonDuplicate, again.Reason)
	}
	assert.Equal(t, 1, f.gateway.count())

	stored, err := f.initiator.Current(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, stored.Status, "replays must not replace the stored attempt")
}

func TestInitiate_MissingTokenNeverCallsGateway(t *testing.T) {
	f := newInitiatorFixture(t)

	a := f.initiator.Initiate(context.Background(), Submission{CustomerID: 7, BillID: 42, Phone: "0712345678"})
	assert.Equal(t, ReasonDuplicate, a.Reason)
	assert.Equal(t, 0, f.gateway.count())

	stored, err := f.initiator.Current(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestInitiate_ValidationFailures(t *testing.T) {
	tests := []struct {
		name       string
		customerID uint
		billID     uint
		phone      string
		wantMsg    string
		stored     bool
	}{
		{name: "missing phone", customerID: 7, billID: 42, phone: "", wantMsg: MsgInvalidPhone, stored: true},
		{name: "bad phone", customerID: 7, billID: 42, phone: "07abc", wantMsg: MsgInvalidPhone, stored: true},
		{name: "no bill", customerID: 7, billID: 0, phone: "0712345678", wantMsg: MsgNoBill},
		{name: "unknown bill", customerID: 7, billID: 99, phone: "0712345678", wantMsg: MsgNoBill},
		{name: "foreign bill", customerID: 7, billID: 50, phone: "0712345678", wantMsg: MsgNoBill},
		{name: "paid bill", customerID: 7, billID: 43, phone: "0712345678", wantMsg: MsgAlreadyPaid, stored: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInitiatorFixture(t)
			a := f.submit(t, tt.customerID, tt.billID, tt.phone)

			assert.Equal(t, StateSettled, a.State)
			assert.Equal(t, StatusFailed, a.Status)
			assert.Equal(t, ReasonValidation, a.Reason)
			assert.Equal(t, tt.wantMsg, a.Message)
			assert.Equal(t, 0, f.gateway.count())

			stored, err := f.initiator.Current(context.Background(), tt.billID)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, stored != nil)
		})
	}
}

func TestInitiate_GatewayOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     mpesa.Result
		err        error
		wantReason Reason
		wantMsg    string
	}{
		{
			name:       "rejected",
			result:     mpesa.Result{Kind: mpesa.ResultRejected, Rejected: &mpesa.Rejection{Code: "500.001.1001", Description: "Unable to lock subscriber"}},
			wantReason: ReasonGatewayRejected,
			wantMsg:    "Unable to lock subscriber",
		},
		{
			name:       "rejected without description",
			result:     mpesa.Result{Kind: mpesa.ResultRejected, Rejected: &mpesa.Rejection{Code: "1"}},
			wantReason: ReasonGatewayRejected,
			wantMsg:    MsgUnknownError,
		},
		{
			name:       "malformed",
			result:     mpesa.Result{Kind: mpesa.ResultMalformed, Malformed: &mpesa.Malformation{Raw: "<html>502</html>"}},
			wantReason: ReasonMalformed,
			wantMsg:    MsgRequestFailed,
		},
		{
			name:       "auth rejected",
			err:        fmt.Errorf("%w: status=401", mpesa.ErrAuthRejected),
			wantReason: ReasonAuthRejected,
			wantMsg:    MsgAuthFailed,
		},
		{
			name:       "transport",
			err:        fmt.Errorf("%w: timeout", mpesa.ErrTransport),
			wantReason: ReasonTransport,
			wantMsg:    MsgRequestFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInitiatorFixture(t)
			f.gateway.result = tt.result
			f.gateway.err = tt.err

			a := f.submit(t, 7, 42, "0712345678")
			assert.Equal(t, StatusFailed, a.Status)
			assert.Equal(t, tt.wantReason, a.Reason)
			assert.Equal(t, tt.wantMsg, a.Message)
			assert.Equal(t, 1, f.gateway.count())
			assert.Empty(t, a.CheckoutRequestID)

			stored, err := f.initiator.Current(context.Background(), 42)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, tt.wantReason, stored.Reason)
		})
	}
}

func TestInitiate_MalformedBodyStaysOutOfMessage(t *testing.T) {
	f := newInitiatorFixture(t)
	f.gateway.result = mpesa.Result{Kind: mpesa.ResultMalformed, Malformed: &mpesa.Malformation{Raw: "<html>upstream timed out</html>"}}

	a := f.submit(t, 7, 42, "0712345678")
	assert.Equal(t, MsgRequestFailed, a.Message)
	assert.Equal(t, "<html>upstream timed out</html>", a.RawResponse)

	stored, err := f.initiator.Current(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotContains(t, stored.Message, "html")
	assert.Equal(t, "<html>upstream timed out</html>", stored.RawResponse)
}

func TestInitiate_NewSubmissionReplacesAttempt(t *testing.T) {
	f := newInitiatorFixture(t)
	f.gateway.result = mpesa.Result{Kind: mpesa.ResultRejected, Rejected: &mpesa.Rejection{Code: "1", Description: "Declined"}}
	first := f.submit(t, 7, 42, "0712345678")
	require.Equal(t, ReasonGatewayRejected, first.Reason)

	f.gateway.result = accepted("ws_3", "ok")
	second := f.submit(t, 7, 42, "0712345678")
	require.Equal(t, StatusSucceeded, second.Status)

	stored, err := f.initiator.Current(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "ws_3", stored.CheckoutRequestID)
	assert.Equal(t, 2, f.gateway.count())
}
