// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxPromptLength   = 2000
	MaxCommentLength  = 1000
	MaxTitleLength    = 200
	MaxFullNameLength = 100
	MaxTags           = 20
	MaxTagLength      = 40
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
	specialPattern  = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
)

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}
	if len(password) > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}

	var hasUpper, hasLower bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !digitPattern.MatchString(password) {
		return fmt.Errorf("password must contain at least one digit")
	}
	if !specialPattern.MatchString(password) {
		return fmt.Errorf("password must contain at least one special character (!@#$%%^&*)")
	}
	return nil
}

// NormalizeUsername trims the username and checks it is 3-20 letters, digits or underscores.
func NormalizeUsername(username string) (string, error) {
	u := strings.TrimSpace(username)
	if u == "" {
		return "", fmt.Errorf("username is required")
	}
	if !usernamePattern.MatchString(u) {
		return "", fmt.Errorf("username must be 3-20 characters of letters, numbers or underscores")
	}
	return u, nil
}

// NormalizeFullName trims the full name and bounds its length.
func NormalizeFullName(fullName string) (string, error) {
	n := strings.TrimSpace(fullName)
	if utf8.RuneCountInString(n) > MaxFullNameLength {
		return "", fmt.Errorf("full name must not exceed %d characters", MaxFullNameLength)
	}
	return n, nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// NormalizePrompt trims a generation prompt and bounds its length.
func NormalizePrompt(prompt string) (string, error) {
	p := strings.TrimSpace(prompt)
	if p == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if utf8.RuneCountInString(p) > MaxPromptLength {
		return "", fmt.Errorf("prompt must not exceed %d characters", MaxPromptLength)
	}
	return p, nil
}

// NormalizeTitle trims a media title; it is required.
func NormalizeTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(t) > MaxTitleLength {
		return "", fmt.Errorf("title must not exceed %d characters", MaxTitleLength)
	}
	return t, nil
}

// NormalizeDescription trims an optional description; blank becomes nil.
func NormalizeDescription(description string) *string {
	d := strings.TrimSpace(description)
	if d == "" {
		return nil
	}
	return &d
}

// NormalizeComment trims comment content and bounds its length.
func NormalizeComment(content string) (string, error) {
	c := strings.TrimSpace(content)
	if c == "" {
		return "", fmt.Errorf("comment content is required")
	}
	if utf8.RuneCountInString(c) > MaxCommentLength {
		return "", fmt.Errorf("comment must not exceed %d characters", MaxCommentLength)
	}
	return c, nil
}

// NormalizeTags trims tags, strips a leading '#', drops blanks and
// case-insensitive duplicates, and requires at least one tag.
func NormalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			tag := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "#"))
			if tag == "" {
				continue
			}
			if utf8.RuneCountInString(tag) > MaxTagLength {
				return nil, fmt.Errorf("tag %q must not exceed %d characters", tag, MaxTagLength)
			}
			key := strings.ToLower(tag)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one tag is required")
	}
	if len(tags) > MaxTags {
		return nil, fmt.Errorf("at most %d tags are allowed", MaxTags)
	}
	return tags, nil
}
