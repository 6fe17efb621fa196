package infra

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

const (
	// SecretKeyBlockedPassword is the secret store key for the blocked-state password.
	SecretKeyBlockedPassword = "blocked_state_password"

	blockedPasswordBytes = 24
)

// EnsureBlockedPassword generates the process-wide blocked-state password
// on first start, or retrieves the existing one from the secret store. Read
// errors other than a missing secret are returned, never papered over with a
// new password.
func EnsureBlockedPassword(store domain.SecretStore) (string, error) {
	password, err := store.GetSecret(SecretKeyBlockedPassword)
	switch {
	case err == nil && password != "":
		return password, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		// Accounts may already be blocked with the stored password.
		return "", fmt.Errorf("failed to read blocked-state password: %w", err)
	}

	password, err = generateBlockedPassword()
	if err != nil {
		return "", fmt.Errorf("failed to generate blocked-state password: %w", err)
	}

	if err := store.SetSecret(SecretKeyBlockedPassword, password); err != nil {
		return "", fmt.Errorf("failed to store blocked-state password: %w", err)
	}
	return password, nil
}

// generateBlockedPassword returns 24 random bytes as URL-safe base64,
// which never contains ':' or a newline.
func generateBlockedPassword() (string, error) {
	b := make([]byte, blockedPasswordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
