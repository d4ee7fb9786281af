package password

import "unicode"

// Violation codes reported by [Policy.Validate].
const (
	CodeTooShort                = "PasswordTooShort"
	CodeRequiresUniqueChars     = "PasswordRequiresUniqueChars"
	CodeRequiresNonAlphanumeric = "PasswordRequiresNonAlphanumeric"
	CodeRequiresDigit           = "PasswordRequiresDigit"
	CodeRequiresLower           = "PasswordRequiresLower"
	CodeRequiresUpper           = "PasswordRequiresUpper"
)

// Violation is one broken rule. Required carries the configured threshold
// for length and uniqueness rules.
type Violation struct {
	Code     string
	Required int
}

// Policy is the set of composition rules applied to new passwords.
type Policy struct {
	RequiredLength         int  `env:"REQUIRED_LENGTH"`
	RequiredUniqueChars    int  `env:"REQUIRED_UNIQUE_CHARS"`
	RequireNonAlphanumeric bool `env:"REQUIRE_NON_ALPHANUMERIC"`
	RequireLowercase       bool `env:"REQUIRE_LOWERCASE"`
	RequireUppercase       bool `env:"REQUIRE_UPPERCASE"`
	RequireDigit           bool `env:"REQUIRE_DIGIT"`
}

// DefaultPolicy requires 6 characters with a digit, both cases and a symbol.
func DefaultPolicy() Policy {
	return Policy{
		RequiredLength:         6,
		RequiredUniqueChars:    1,
		RequireNonAlphanumeric: true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireDigit:           true,
	}
}

// Validate returns every rule pw breaks, in a stable order. A nil slice means
// the password is acceptable. Length is counted in runes.
func (p Policy) Validate(pw string) []Violation {
	var out []Violation

	var (
		length                                  int
		hasDigit, hasLower, hasUpper, hasSymbol bool
		seen                                    = make(map[rune]struct{}, len(pw))
	)
	for _, r := range pw {
		length++
		seen[r] = struct{}{}
		switch {
		case isASCIIDigit(r):
			hasDigit = true
		case isASCIILower(r):
			hasLower = true
		case isASCIIUpper(r):
			hasUpper = true
		default:
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				hasSymbol = true
			}
		}
	}

	if length < p.RequiredLength {
		out = append(out, Violation{Code: CodeTooShort, Required: p.RequiredLength})
	}
	if p.RequireNonAlphanumeric && !hasSymbol {
		out = append(out, Violation{Code: CodeRequiresNonAlphanumeric})
	}
	if p.RequireDigit && !hasDigit {
		out = append(out, Violation{Code: CodeRequiresDigit})
	}
	if p.RequireLowercase && !hasLower {
		out = append(out, Violation{Code: CodeRequiresLower})
	}
	if p.RequireUppercase && !hasUpper {
		out = append(out, Violation{Code: CodeRequiresUpper})
	}
	if p.RequiredUniqueChars >= 1 && len(seen) < p.RequiredUniqueChars {
		out = append(out, Violation{Code: CodeRequiresUniqueChars, Required: p.RequiredUniqueChars})
	}
	return out
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
