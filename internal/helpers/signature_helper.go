package helpers

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// MidtransSignature is the signature_key Midtrans attaches to HTTP notifications:
// hex(sha512(order_id + status_code + gross_amount + server_key)).
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	hash := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(hash[:])
}

func VerifyMidtransSignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	if serverKey == "" || signature == "" {
		return false
	}
	expected := MidtransSignature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
