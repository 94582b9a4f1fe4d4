package domain

import "strings"

const passwordSpecials = "@$!%*?&"

// ValidatePassword mirrors the server's registration policy so the form can
// fail fast. The server remains authoritative.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ValidationError{Field: "password", Msg: "must be at least 8 characters long"}
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ValidationError{Field: "password", Msg: "must include uppercase, lowercase, number and special char (" + passwordSpecials + ")"}
	}
	return nil
}
