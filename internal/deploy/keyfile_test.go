package deploy

import (
	"strings"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey() error = %v", err)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey() error = %v", err)
	}
	if got != testKeyHex {
		t.Errorf("round trip = %q, want %q", got, testKeyHex)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "correct")
	if err != nil {
		t.Fatalf("EncryptKey() error = %v", err)
	}
	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Error("DecryptKey() with wrong password should fail")
	}
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	if _, err := EncryptKey(testKeyHex, ""); err == nil {
		t.Error("empty password should be rejected")
	}
	if _, err := EncryptKey("not-hex", "pw"); err == nil {
		t.Error("non-hex key should be rejected")
	}
	if _, err := EncryptKey("abcd", "pw"); err == nil {
		t.Error("short key should be rejected")
	}
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := loadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/nonexistent"})
	if err != nil {
		t.Fatalf("loadKey() error = %v", err)
	}
	if got != testKeyHex {
		t.Errorf("loadKey() = %q, want raw key without prefix", got)
	}
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := loadKey(KeyConfig{})
	if err == nil || !strings.Contains(err.Error(), "no private key source") {
		t.Errorf("loadKey() with empty config: %v", err)
	}
}
