package deploy

import (
	"testing"
	"time"
)

func TestExpiryArg(t *testing.T) {
	if got := expiryArg(nil); got.Sign() != 0 {
		t.Errorf("expiryArg(nil) = %s, want 0", got)
	}

	expiry := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := expiryArg(&expiry); got.Int64() != expiry.Unix() {
		t.Errorf("expiryArg(%v) = %s, want %d", expiry, got, expiry.Unix())
	}
}
