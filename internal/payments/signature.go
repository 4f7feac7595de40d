package payments

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// ComputeSignature returns the hex SHA-512 the gateway signs notifications
// with: hash(orderRef + statusCode + grossAmount + serverKey).
func ComputeSignature(orderRef, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderRef + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares the received signature against the expected one
// in constant time.
func VerifySignature(notification Notification, serverKey string) bool {
	expected := ComputeSignature(notification.OrderRef, notification.StatusCode, notification.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(notification.SignatureKey)) == 1
}
