package protocol

import (
	"errors"
	"regexp"
	"strings"
)

const MaxNameLength = 32

var (
	ErrInvalidUser   = errors.New("invalid user name")
	ErrInvalidTarget = errors.New("invalid target")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateUser enforces user naming rules without modification.
func ValidateUser(name string) error {
	if name == "" || len(name) > MaxNameLength || !namePattern.MatchString(name) {
		return ErrInvalidUser
	}
	return nil
}

// ValidateTarget checks whether target is a user name or a #group.
func ValidateTarget(target string) error {
	if group, ok := strings.CutPrefix(target, "#"); ok {
		if group == "" || len(group) > MaxNameLength || !namePattern.MatchString(group) {
			return ErrInvalidTarget
		}
		return nil
	}
	if err := ValidateUser(target); err != nil {
		return ErrInvalidTarget
	}
	return nil
}
