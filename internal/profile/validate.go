package profile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidName is wrapped by every profile name rejection.
var ErrInvalidName = errors.New("invalid profile name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Names that clash with files kept next to the profiles directory.
var reservedNames = map[string]bool{
	"profiles": true,
	"config":   true,
	"tmp":      true,
}

// NormalizeName trims and lowercases a name typed by the user, so "--profile
// Work" and the config's "work" refer to one account.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName checks that name can be used as a profile directory. Names
// are lowercase letters, digits, '_' and '-', at most 64 long and not
// starting with a separator.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: use up to 64 of a-z, 0-9, '_' and '-', starting with a letter or digit", ErrInvalidName, name)
	}
	if reservedNames[name] {
		return fmt.Errorf("%w %q: reserved", ErrInvalidName, name)
	}
	return nil
}
