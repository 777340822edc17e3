package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func signPayload(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignatureRoundtrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	header := signPayload(payload, "1756400000", "whsec_test")

	if !VerifySignature(payload, header, "whsec_test") {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","amount":100}`)
	header := signPayload(payload, "1756400000", "whsec_test")

	tampered := []byte(`{"id":"evt_1","amount":999}`)
	if VerifySignature(tampered, header, "whsec_test") {
		t.Fatal("tampered payload must not verify")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(payload, "1756400000", "whsec_test")

	if VerifySignature(payload, header, "whsec_other") {
		t.Fatal("wrong secret must not verify")
	}
}

func TestVerifySignatureMalformedHeaders(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)

	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no pairs", "garbage"},
		{"missing v1", "t=1756400000"},
		{"missing t", "v1=deadbeef"},
		{"non numeric timestamp", "t=abc,v1=deadbeef"},
		{"invalid hex", "t=1756400000,v1=zzzz"},
	}
	for _, tt := range tests {
		if VerifySignature(payload, tt.header, "whsec_test") {
			t.Fatalf("%s: header %q must not verify", tt.name, tt.header)
		}
	}
}

func TestVerifySignatureAcceptsAnyV1Match(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	valid := signPayload(payload, "1756400000", "whsec_test")

	// Gateways roll secrets by sending multiple v1 entries.
	header := "t=1756400000,v1=" + hex.EncodeToString([]byte("not-a-mac....................")) + "," + valid[len("t=1756400000,"):]
	if !VerifySignature(payload, header, "whsec_test") {
		t.Fatal("expected one matching v1 entry to verify")
	}
}

func TestVerifySignatureEmptySecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(payload, "1756400000", "")

	if VerifySignature(payload, header, "") {
		t.Fatal("empty secret must never verify")
	}
}
