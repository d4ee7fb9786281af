package totp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrFormat is matched by every [FormatError].
var ErrFormat = errors.New("totp: invalid base32 input")

// FormatError reports the first offending character of a Base32 input.
type FormatError struct {
	Offset int
	Char   rune
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("totp: invalid base32 input: %s", e.Reason)
	}
	return fmt.Sprintf("totp: invalid base32 character %q at offset %d", e.Char, e.Offset)
}

// Is reports whether target is [ErrFormat].
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

var keyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeBase32 encodes b with the RFC 4648 alphabet, upper case, no padding.
func EncodeBase32(b []byte) string {
	return keyEncoding.EncodeToString(b)
}

// DecodeBase32 decodes s case-insensitively. Whitespace and trailing '='
// padding are ignored; any other character outside A-Z2-7 is rejected.
func DecodeBase32(s string) ([]byte, error) {
	var sb strings.Builder
	sb.Grow(len(s))
	padded := false
	for i, r := range s {
		switch {
		case unicode.IsSpace(r):
			continue
		case r == '=':
			padded = true
			continue
		case padded:
			return nil, &FormatError{Offset: i, Char: r, Reason: "data after padding"}
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7'):
			sb.WriteRune(r)
		default:
			return nil, &FormatError{Offset: i, Char: r}
		}
	}

	clean := sb.String()
	switch len(clean) % 8 {
	case 1, 3, 6:
		return nil, &FormatError{Reason: fmt.Sprintf("impossible length %d", len(clean))}
	}

	out, err := keyEncoding.DecodeString(clean)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}
	return out, nil
}

// FormatKey renders an encoded key as lowercase groups of four characters,
// the layout authenticator apps expect for manual entry.
func FormatKey(encoded string) string {
	var sb strings.Builder
	count := 0
	for _, r := range encoded {
		if unicode.IsSpace(r) {
			continue
		}
		if count > 0 && count%4 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteRune(unicode.ToLower(r))
		count++
	}
	return sb.String()
}
