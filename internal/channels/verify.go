// Package channels – webhook verification
//
// The Meta subscription handshake (hub.mode / hub.verify_token /
// hub.challenge) and the X-Hub-Signature-256 body signature. Both compare in
// constant time.

package channels

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"
)

// HeaderSignature carries the Meta HMAC-SHA256 of the raw request body.
const HeaderSignature = "X-Hub-Signature-256"

// Verify answers the Meta subscription handshake. It returns the challenge to
// echo when hub.mode is "subscribe" and hub.verify_token equals token. An
// empty configured token never verifies.
func Verify(q url.Values, token string) (string, bool) {
	if token == "" || q.Get("hub.mode") != "subscribe" {
		return "", false
	}
	got := q.Get("hub.verify_token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
		return "", false
	}
	return q.Get("hub.challenge"), true
}

// ValidSignature checks an X-Hub-Signature-256 header ("sha256=<hex>")
// against body using the app secret.
func ValidSignature(body []byte, header, secret string) bool {
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok || sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(sig)), []byte(computed))
}

// Sign computes the header value ValidSignature accepts.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
