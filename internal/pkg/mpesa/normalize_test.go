package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Accepted(t *testing.T) {
	raw := []byte(`{
		"MerchantRequestID": "29115-34620561-1",
		"CheckoutRequestID": "ws_CO_191220191020363925",
		"ResponseCode": "0",
		"ResponseDescription": "Success. Request accepted for processing",
		"CustomerMessage": "Success. Request accepted for processing"
	}`)

	res := Normalize(raw)
	require.Equal(t, ResultAccepted, res.Kind)
	require.NotNil(t, res.Accepted)
	assert.Nil(t, res.Rejected)
	assert.Nil(t, res.Malformed)
	assert.Equal(t, "0", res.Code())
	assert.Equal(t, "29115-34620561-1", res.Accepted.MerchantRequestID)
	assert.Equal(t, "ws_CO_191220191020363925", res.Accepted.CheckoutRequestID)
	assert.Equal(t, "Success. Request accepted for processing", res.Accepted.CustomerMessage)
}

func TestNormalize_SuccessShapeWithNonZeroCode(t *testing.T) {
	res := Normalize([]byte(`{"MerchantRequestID":"m","CheckoutRequestID":"c","ResponseCode":"1","ResponseDescription":"Declined"}`))
	require.Equal(t, ResultRejected, res.Kind)
	assert.Nil(t, res.Accepted)
	assert.Equal(t, "1", res.Rejected.Code)
	assert.Equal(t, "Declined", res.Rejected.Description)
}

func TestNormalize_NumericResponseCode(t *testing.T) {
	res := Normalize([]byte(`{"CheckoutRequestID":"c","ResponseCode":0}`))
	require.Equal(t, ResultAccepted, res.Kind)
	assert.Equal(t, "c", res.Accepted.CheckoutRequestID)
}

func TestNormalize_ErrorShape(t *testing.T) {
	raw := []byte(`{"requestId":"4788-2411531-1","errorCode":"500.001.1001","errorMessage":"Unable to lock subscriber, a transaction is already in process for the current subscriber"}`)

	res := Normalize(raw)
	require.Equal(t, ResultRejected, res.Kind)
	assert.Nil(t, res.Accepted)
	assert.Nil(t, res.Malformed)
	assert.Equal(t, "500.001.1001", res.Rejected.Code)
	assert.Equal(t, "Unable to lock subscriber, a transaction is already in process for the current subscriber", res.Rejected.Description)
}

func TestNormalize_Malformed(t *testing.T) {
	for _, raw := range []string{
		`<html>Bad Gateway</html>`,
		`{"unexpected":"shape"}`,
		`[]`,
		``,
		`{"ResponseCode":null}`,
	} {
		res := Normalize([]byte(raw))
		require.Equal(t, ResultMalformed, res.Kind, "body %q", raw)
		require.NotNil(t, res.Malformed)
		assert.Nil(t, res.Accepted)
		assert.Nil(t, res.Rejected)
		assert.Equal(t, raw, res.Malformed.Raw)
		assert.Equal(t, "", res.Code())
	}
}

func TestResultKindString(t *testing.T) {
	assert.Equal(t, "accepted", ResultAccepted.String())
	assert.Equal(t, "rejected", ResultRejected.String())
	assert.Equal(t, "malformed", ResultMalformed.String())
}
