package wizard

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

const minPasswordLength = 8

var (
	ErrPasswordTooShort  = errors.New("Das Passwort muss mindestens 8 Zeichen lang sein")
	ErrPasswordNoUpper   = errors.New("Das Passwort muss einen Großbuchstaben enthalten")
	ErrPasswordNoLower   = errors.New("Das Passwort muss einen Kleinbuchstaben enthalten")
	ErrPasswordNoDigit   = errors.New("Das Passwort muss eine Ziffer enthalten")
	ErrPasswordsMismatch = errors.New("Die Passwörter stimmen nicht überein")
)

// PasswordIssues lists every complexity rule the password violates, in display order.
func PasswordIssues(password string) []error {
	var issues []error
	if utf8.RuneCountInString(password) < minPasswordLength {
		issues = append(issues, ErrPasswordTooShort)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		issues = append(issues, ErrPasswordNoUpper)
	}
	if !lower {
		issues = append(issues, ErrPasswordNoLower)
	}
	if !digit {
		issues = append(issues, ErrPasswordNoDigit)
	}
	return issues
}

// ValidatePassword returns the first complexity violation, or ErrPasswordsMismatch
// when the confirmation differs.
func ValidatePassword(password, confirm string) error {
	if issues := PasswordIssues(password); len(issues) > 0 {
		return issues[0]
	}
	if password != confirm {
		return ErrPasswordsMismatch
	}
	return nil
}
