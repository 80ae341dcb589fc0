package condition

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/botflow/pkg/domain"
)

// DefaultValidationMessage is returned when a rule has no error text of its own.
const DefaultValidationMessage = "Sorry, I couldn't understand that. Please try again."

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-().]{7,20}$`)
)

// Validate reports whether input satisfies rule. A nil rule accepts everything,
// and so does a malformed regex pattern.
func Validate(input string, rule *domain.ValidationRule) bool {
	if !rule.Declared() {
		return true
	}
	switch rule.Type {
	case domain.ValidateOptions:
		in := strings.TrimSpace(input)
		for _, opt := range rule.Options {
			if strings.EqualFold(in, strings.TrimSpace(opt)) {
				return true
			}
		}
		return false
	case domain.ValidateRegex:
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return true
		}
		return re.MatchString(input)
	case domain.ValidateLength:
		n := utf8.RuneCountInString(input)
		if rule.Min != nil && n < *rule.Min {
			return false
		}
		if rule.Max != nil && n > *rule.Max {
			return false
		}
		return true
	case domain.ValidateNumber:
		_, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
		return err == nil
	case domain.ValidateEmail:
		return emailPattern.MatchString(strings.TrimSpace(input))
	case domain.ValidatePhone:
		return phonePattern.MatchString(strings.TrimSpace(input))
	default:
		return true
	}
}

// ErrorMessage returns the text shown when rule rejects input.
func ErrorMessage(rule *domain.ValidationRule) string {
	if rule != nil && rule.ErrorMessage != "" {
		return rule.ErrorMessage
	}
	return DefaultValidationMessage
}
