package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/chris/payment-decisions/pkg/metrics"
	"github.com/chris/payment-decisions/pkg/ratelimit"
	"github.com/google/uuid"
)

// CustomerIDHeader identifies the customer when the body does not.
const CustomerIDHeader = "X-Customer-Id"

// maxPeekBytes bounds how much of the body is read to find the customer id.
const maxPeekBytes = 1 << 20

// Limiter admits or denies a request for a key.
type Limiter interface {
	Allow(key string) bool
}

// RateLimit admits requests through a per-customer token bucket. Denied
// requests get 429 with Retry-After and never reach next.
func RateLimit(limiter Limiter, recorder *metrics.Recorder, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			key := admissionKey(r)
			if !limiter.Allow(key) {
				recorder.RecordRateLimitDrop(r.Context())
				logger.WarnContext(r.Context(), "rate limit exceeded", slog.String("key", key))
				w.Header().Set("Retry-After", strconv.Itoa(int(ratelimit.RetryAfter.Seconds())))
				http.Error(w, "Rate limit exceeded for this customer", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// admissionKey picks the body customerId, then the X-Customer-Id header, then
// the client address. The body is restored for the next handler.
func admissionKey(r *http.Request) string {
	if id := peekCustomerID(r); id != "" {
		return canonicalCustomerID(id)
	}
	if id := r.Header.Get(CustomerIDHeader); id != "" {
		return canonicalCustomerID(id)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return ratelimit.UnknownKey
}

func peekCustomerID(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body = readCloser{
		Reader: io.MultiReader(bytes.NewReader(body), r.Body),
		Closer: r.Body,
	}
	if err != nil {
		return ""
	}

	var payload struct {
		CustomerId any `json:"customerId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch v := payload.CustomerId.(type) {
	case string:
		return v
	case float64:
		if v != 0 {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// canonicalCustomerID folds UUID spellings onto the form decisions are keyed by.
func canonicalCustomerID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

// readCloser replays the peeked prefix before the rest of the original body.
type readCloser struct {
	io.Reader
	io.Closer
}
