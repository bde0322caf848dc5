// Package sign implements the HMAC scheme kiosks use to tag their QR codes.
// A kiosk embeds m, ts (unix seconds) and sig = HMAC-SHA256(secret, m|ts)
// in the QR payload; the server verifies authenticity and freshness before
// treating the machine reference as trustworthy.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrBadSignature means the signature does not match the payload.
	ErrBadSignature = errors.New("qr signature mismatch")
	// ErrExpired means the timestamp falls outside the freshness window.
	ErrExpired = errors.New("qr timestamp outside freshness window")
)

// Sign computes the signature a kiosk embeds for machineID at the given
// timestamp.
func Sign(secret, machineID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(machineID))
	mac.Write([]byte("|"))
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks sig against machineID and ts. When ts is non-empty it must
// parse as unix seconds and lie within window of now (in either direction;
// kiosk clocks drift). An empty ts skips the freshness check, signature
// verification still applies.
func Verify(secret, machineID, ts, sig string, window time.Duration, now time.Time) error {
	expected := Sign(secret, machineID, ts)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrBadSignature
	}

	if ts == "" {
		return nil
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrExpired
	}
	issued := time.Unix(unix, 0)
	if now.Sub(issued) > window || issued.Sub(now) > window {
		return ErrExpired
	}
	return nil
}
