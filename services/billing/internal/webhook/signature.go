// Package webhook authenticates payment provider deliveries. The
// provider signs each request with a shared secret; unsigned or stale
// requests are rejected before the payload is trusted.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the header carrying the provider signature.
const SignatureHeader = "X-Payment-Signature"

// DefaultTolerance bounds how old a signed timestamp may be.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrBadSignature means the signature header is absent, malformed,
	// or does not match the payload.
	ErrBadSignature = errors.New("invalid webhook signature")
	// ErrStaleTimestamp means the signed timestamp is outside the
	// replay tolerance window.
	ErrStaleTimestamp = errors.New("webhook timestamp outside tolerance")
)

// Signature verifies provider signatures of the form
// "t=<unix>,v1=<hex hmac-sha256>" computed over "<t>.<payload>".
type Signature struct {
	secret    []byte
	tolerance time.Duration
}

// NewSignature builds a verifier. tolerance <= 0 falls back to
// DefaultTolerance.
func NewSignature(secret string, tolerance time.Duration) (*Signature, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("webhook secret is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Signature{secret: []byte(secret), tolerance: tolerance}, nil
}

// Verify checks the signature header against the raw request payload.
func (s *Signature) Verify(header string, payload []byte, now time.Time) error {
	ts, sig, err := parseHeader(header)
	if err != nil {
		return err
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > s.tolerance || age < -s.tolerance {
		return ErrStaleTimestamp
	}
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), sig) {
		return ErrBadSignature
	}
	return nil
}

// Sign produces a header value for the payload. Used by tests and the
// local provider simulator.
func (s *Signature) Sign(payload []byte, now time.Time) string {
	ts := now.Unix()
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func parseHeader(header string) (int64, []byte, error) {
	var ts int64
	var sig []byte
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrBadSignature
			}
			ts = parsed
		case "v1":
			decoded, err := hex.DecodeString(value)
			if err != nil {
				return 0, nil, ErrBadSignature
			}
			sig = decoded
		}
	}
	if ts == 0 || len(sig) == 0 {
		return 0, nil, ErrBadSignature
	}
	return ts, sig, nil
}
