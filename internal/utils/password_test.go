package utils

import (
	"errors"
	"testing"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPasswordHash("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("want ErrEmptyPassword, got %v", err)
	}
	if CheckPasswordHash("", "some-hash") || CheckPasswordHash("pw", "") {
		t.Error("empty inputs must not verify")
	}
}
