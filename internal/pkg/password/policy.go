package password

import (
	"fmt"
	"strings"
	"unicode"
)

// Requirement tags returned by Policy.Validate. Callers localize these into
// user-facing messages.
const (
	MissingUppercase = "uppercase"
	MissingNumber    = "number"
	MissingSpecial   = "special_character"
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

type Policy struct {
	MinLength        int
	RequireUppercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func DefaultPolicy() Policy {
	return Policy{
		MinLength:        8,
		RequireUppercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}
}

// Validate checks the password against the policy and returns the specific
// missing requirement tags, not just a pass/fail.
func (p Policy) Validate(password string) (bool, []string) {
	var missing []string

	if len(password) < p.MinLength {
		missing = append(missing, fmt.Sprintf("min_length_%d", p.MinLength))
	}

	var hasUpper, hasNumber, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasNumber = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		missing = append(missing, MissingUppercase)
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, MissingNumber)
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, MissingSpecial)
	}

	return len(missing) == 0, missing
}
