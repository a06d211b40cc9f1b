// Package middleware provides HTTP middleware for the webhook endpoint.
package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
)

// SignatureHeader is the GitHub webhook signature header.
const SignatureHeader = "X-Hub-Signature-256"

// MaxBodySize caps inbound webhook payloads at 5 MB. The cap applies
// before the body is buffered for signature verification, so an
// unauthenticated sender cannot force unbounded memory use.
const MaxBodySize = 5 << 20

// WebhookHMAC returns middleware that validates the HMAC-SHA256 webhook
// signature over the raw request body before any parsing happens.
// Mismatch rejects the delivery with 401 and the payload is never processed.
func WebhookHMAC(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, `{"error":"webhook secret not configured"}`, http.StatusServiceUnavailable)
				return
			}

			sig := r.Header.Get(SignatureHeader)
			if sig == "" {
				http.Error(w, "missing webhook signature", http.StatusUnauthorized)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "failed to read body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !verifyHMAC(body, sig, secret) {
				http.Error(w, "invalid webhook signature", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// verifyHMAC checks an HMAC-SHA256 signature in GitHub's "sha256=<hex>"
// format. Raw hex without the prefix is also accepted.
func verifyHMAC(payload []byte, signature, secret string) bool {
	sig := strings.TrimPrefix(signature, "sha256=")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	return hmac.Equal(sigBytes, expected)
}
