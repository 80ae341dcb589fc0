package botflow

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 4KB, well above any chat message.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides the default limit.
	EnvMaxInputSize = "BOTFLOW_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput cleans inbound text by enforcing a size limit, validating
// UTF-8 and stripping control characters other than newline, tab and carriage
// return. A limit of zero selects the default.
func SanitizeInput(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = maxInputSize()
	}
	if len(input) > limit {
		// Rejected rather than truncated: a cut answer could pass validation.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(input, unsafeControl) < 0 {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
