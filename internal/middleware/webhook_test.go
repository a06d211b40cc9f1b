package middleware_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mba-tools/jirald/internal/middleware"
)

const secret = "test-secret"

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newHandler(called *bool) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
	return middleware.WebhookHMAC(secret)(inner)
}

func TestValidSignaturePasses(t *testing.T) {
	body := `{"action":"created"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(middleware.SignatureHeader, sign(body))

	var called bool
	rec := httptest.NewRecorder()
	newHandler(&called).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !called {
		t.Fatal("inner handler was not invoked")
	}
}

func TestInvalidSignatureRejectedBeforeHandler(t *testing.T) {
	body := `{"action":"created"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(middleware.SignatureHeader, sign("different body"))

	var called bool
	rec := httptest.NewRecorder()
	newHandler(&called).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if called {
		t.Fatal("inner handler must not run on signature mismatch")
	}
}

func TestMissingSignatureRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))

	var called bool
	rec := httptest.NewRecorder()
	newHandler(&called).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if called {
		t.Fatal("inner handler must not run without a signature")
	}
}

// countingReader serves an endless stream of zeroes while counting how
// many bytes the consumer actually pulled.
type countingReader struct {
	read int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = '0'
	}
	c.read += int64(len(p))
	return len(p), nil
}

func TestOversizedBodyRejectedWithoutBuffering(t *testing.T) {
	src := &countingReader{}
	req := httptest.NewRequest(http.MethodPost, "/webhook", io.LimitReader(src, 64<<20))
	req.Header.Set(middleware.SignatureHeader, "sha256=deadbeef")

	var called bool
	rec := httptest.NewRecorder()
	newHandler(&called).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if called {
		t.Fatal("inner handler must not run for an oversized body")
	}
	// The middleware must stop pulling at the cap, not drain all 64 MB.
	if src.read > middleware.MaxBodySize+4096 {
		t.Fatalf("middleware consumed %d bytes, cap is %d", src.read, middleware.MaxBodySize)
	}
}

func TestBodyAtCapStillVerified(t *testing.T) {
	body := strings.Repeat("a", 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(middleware.SignatureHeader, sign(body))

	var called bool
	rec := httptest.NewRecorder()
	newHandler(&called).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected a large in-cap body to pass, got %d called=%v", rec.Code, called)
	}
}

func TestUnconfiguredSecretRejected(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("inner handler must not run without a configured secret")
	})
	handler := middleware.WebhookHMAC("")(inner)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
