package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyForClient builds the counter key for one endpoint group and client address.
func KeyForClient(group, clientIP string) string {
	group = strings.TrimSpace(group)
	clientIP = strings.TrimSpace(clientIP)
	if group == "" || clientIP == "" {
		return ""
	}
	return "ip:" + clientIP + ":" + group
}

// KeyForEmail builds the counter key for one endpoint group and login email.
// The address is case-folded and hashed so Redis never holds it in clear.
func KeyForEmail(group, email string) string {
	group = strings.TrimSpace(group)
	email = strings.ToLower(strings.TrimSpace(email))
	if group == "" || email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return "email:" + hex.EncodeToString(sum[:16]) + ":" + group
}
