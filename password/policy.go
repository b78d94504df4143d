package password

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

// MinLength is the minimum number of characters a password must contain.
const MinLength = 12

// Symbols is the punctuation set that satisfies the special-character rule.
const Symbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Rule violation messages, in evaluation order.
const (
	ViolationLength    = "Password must be at least 12 characters long"
	ViolationUppercase = "Password must contain at least one uppercase letter"
	ViolationLowercase = "Password must contain at least one lowercase letter"
	ViolationDigit     = "Password must contain at least one number"
	ViolationSymbol    = "Password must contain at least one special character (!@#$%^&* etc.)"
	ViolationCommon    = "This password is too common. Please choose a more unique password"
)

// Strength is the categorical label attached to a zxcvbn score.
type Strength string

const (
	StrengthWeak       Strength = "weak"
	StrengthFair       Strength = "fair"
	StrengthGood       Strength = "good"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very-strong"
)

var strengthLabels = [...]Strength{StrengthWeak, StrengthFair, StrengthGood, StrengthStrong, StrengthVeryStrong}

var commonPasswords = map[string]struct{}{
	"password": {}, "password123": {}, "12345678": {}, "qwerty": {},
	"abc123": {}, "monkey": {}, "1234567": {}, "letmein": {},
	"trustno1": {}, "dragon": {}, "baseball": {}, "iloveyou": {},
	"master": {}, "sunshine": {}, "ashley": {}, "bailey": {},
	"passw0rd": {}, "shadow": {}, "123123": {}, "654321": {},
	"superman": {}, "qazwsx": {}, "michael": {}, "football": {},
}

// Result is the verdict of [Validate].
type Result struct {
	Valid       bool     `json:"isValid"`
	Errors      []string `json:"errors"`
	Strength    Strength `json:"strength"`
	Score       int      `json:"score"`
	Suggestions []string `json:"suggestions"`
}

// FirstError returns the first violated rule, or "" when the password is valid.
func (r Result) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}

// Validate checks pw against the composition rules and the common-password
// deny-list, and scores it with zxcvbn. userInputs (email, name) are passed to
// the estimator so passwords derived from them score lower.
func Validate(pw string, userInputs ...string) Result {
	violations := make([]string, 0, 6)

	if utf8.RuneCountInString(pw) < MinLength {
		violations = append(violations, ViolationLength)
	}
	if !strings.ContainsFunc(pw, isASCIIUpper) {
		violations = append(violations, ViolationUppercase)
	}
	if !strings.ContainsFunc(pw, isASCIILower) {
		violations = append(violations, ViolationLowercase)
	}
	if !strings.ContainsFunc(pw, isASCIIDigit) {
		violations = append(violations, ViolationDigit)
	}
	if !strings.ContainsAny(pw, Symbols) {
		violations = append(violations, ViolationSymbol)
	}
	if IsCommon(pw) {
		violations = append(violations, ViolationCommon)
	}

	score := Score(pw, userInputs...)
	return Result{
		Valid:       len(violations) == 0,
		Errors:      violations,
		Strength:    strengthLabels[score],
		Score:       score,
		Suggestions: suggestions(score, violations),
	}
}

// IsCommon reports a case-insensitive exact match against the deny-list.
func IsCommon(pw string) bool {
	_, ok := commonPasswords[strings.ToLower(pw)]
	return ok
}

// Score returns the zxcvbn score in [0,4].
func Score(pw string, userInputs ...string) int {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, in)
		}
	}
	score := zxcvbn.PasswordStrength(pw, inputs).Score
	if score < 0 {
		return 0
	}
	if score > 4 {
		return 4
	}
	return score
}

func suggestions(score int, violations []string) []string {
	var out []string
	if score < 3 {
		out = append(out, "Add another word or two. Uncommon words are better.")
	}
	for _, v := range violations {
		if v == ViolationCommon {
			out = append(out, "Avoid common passwords and predictable patterns.")
			break
		}
	}
	return out
}

func isASCIIUpper(r rune) bool { return r <= unicode.MaxASCII && unicode.IsUpper(r) }
func isASCIILower(r rune) bool { return r <= unicode.MaxASCII && unicode.IsLower(r) }
func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
