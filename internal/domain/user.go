// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type UserID string

type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(displayName string) (*User, error) {
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}
	return &User{ID: UserID(uuid.NewString()), DisplayName: displayName}, nil
}

func validateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}
