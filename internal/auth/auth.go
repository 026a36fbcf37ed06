// Package auth issues and verifies the bearer key that guards the run trigger.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const hashCost = 12

// keyPrefix marks trigger keys so they are recognisable in shell history and configs.
const keyPrefix = "pod_"

var ErrNoKey = errors.New("no bearer key")

// GenerateKey returns a new random trigger key and its bcrypt hash.
func GenerateKey() (key, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}
	key = keyPrefix + base64.RawURLEncoding.EncodeToString(b)
	hash, err = HashKey(key)
	if err != nil {
		return "", "", err
	}
	return key, hash, nil
}

// HashKey hashes a key using bcrypt with cost 12.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}

// CheckKey compares a plaintext key against a bcrypt hash.
func CheckKey(key, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}

// BearerKey extracts the key from an "Authorization: Bearer" header.
func BearerKey(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	key, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(key) == "" {
		return "", ErrNoKey
	}
	return strings.TrimSpace(key), nil
}
