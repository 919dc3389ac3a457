package webhook

import (
	"errors"
	"testing"
	"time"
)

func TestVerifyAcceptsSignedPayload(t *testing.T) {
	sig, err := NewSignature("whsec_test", 0)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := sig.Sign(payload, now)
	if err := sig.Verify(header, payload, now); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	sig, _ := NewSignature("whsec_test", 0)
	now := time.Now()
	header := sig.Sign([]byte(`{"id":"evt_1"}`), now)
	err := sig.Verify(header, []byte(`{"id":"evt_2"}`), now)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer, _ := NewSignature("whsec_a", 0)
	verifier, _ := NewSignature("whsec_b", 0)
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := signer.Sign(payload, now)
	if err := verifier.Verify(header, payload, now); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	sig, _ := NewSignature("whsec_test", time.Minute)
	payload := []byte(`{"id":"evt_1"}`)
	signedAt := time.Now().Add(-2 * time.Minute)
	header := sig.Sign(payload, signedAt)
	err := sig.Verify(header, payload, time.Now())
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("err = %v, want ErrStaleTimestamp", err)
	}
}

func TestVerifyRejectsMalformedHeader(t *testing.T) {
	sig, _ := NewSignature("whsec_test", 0)
	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123", "t=123,v1=zz"} {
		if err := sig.Verify(header, []byte("{}"), time.Now()); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("header %q: err = %v, want ErrBadSignature", header, err)
		}
	}
}
