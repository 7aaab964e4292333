package hcaptcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_DisabledAcceptsEverything(t *testing.T) {
	var v *Verifier
	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify(context.Background(), "", ""))

	v = NewVerifier("site", "", "")
	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify(context.Background(), "", ""))
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("response") == "good" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	v := NewVerifier("site", "s3cret", srv.URL)
	require.True(t, v.Enabled())

	assert.NoError(t, v.Verify(context.Background(), "good", "10.0.0.1"))

	err := v.Verify(context.Background(), "bad", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-input-response")

	assert.ErrorIs(t, v.Verify(context.Background(), " ", ""), ErrEmptyToken)
}
