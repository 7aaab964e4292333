package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SignBillReference returns the hex HMAC-SHA256 of the bill reference that is
// embedded in the callback URL.
func SignBillReference(secret string, billID uint) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("bill:" + strconv.FormatUint(uint64(billID), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyBillReference(secret string, billID uint, signature string) bool {
	sig := strings.TrimSpace(signature)
	if secret == "" || billID == 0 || sig == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(SignBillReference(secret, billID))
	return hmac.Equal(decoded, expected)
}

// CallbackURLs builds per-bill callback URLs under Base.
type CallbackURLs struct {
	Base   string
	Secret string
}

// For returns <Base>/<billID>/<signature>.
func (u CallbackURLs) For(billID uint) string {
	id := strconv.FormatUint(uint64(billID), 10)
	return strings.TrimRight(u.Base, "/") + "/" + id + "/" + SignBillReference(u.Secret, billID)
}
