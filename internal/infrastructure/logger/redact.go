package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// PIILevel defines how much user content reaches the logs.
type PIILevel string

const (
	// PIILevelNone redacts all user content
	PIILevelNone PIILevel = "none"
	// PIILevelHashed hashes detected PII and handles
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull logs content unchanged
	PIILevelFull PIILevel = "full"
)

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern  = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	walletPattern = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	ipv4Pattern   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// Redactor prepares mention text and handles for logging.
type Redactor struct {
	level PIILevel
	salt  string
}

// NewRedactor builds a Redactor. Unknown levels fall back to hashed.
func NewRedactor(level, salt string) *Redactor {
	l := PIILevel(strings.ToLower(strings.TrimSpace(level)))
	switch l {
	case PIILevelNone, PIILevelHashed, PIILevelFull:
	default:
		l = PIILevelHashed
	}
	return &Redactor{level: l, salt: salt}
}

// Level returns the effective level.
func (r *Redactor) Level() PIILevel {
	return r.level
}

// Text sanitises free-form user content.
func (r *Redactor) Text(input string) string {
	switch r.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return input
	}

	result := emailPattern.ReplaceAllStringFunc(input, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", r.hash(match))
	})
	result = phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", r.hash(match))
	})
	result = walletPattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[ADDR:%s]", r.hash(match))
	})
	result = ipv4Pattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[IP:%s]", r.hash(match))
	})
	return result
}

// Handle sanitises an account handle.
func (r *Redactor) Handle(handle string) string {
	if handle == "" {
		return ""
	}
	switch r.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return handle
	default:
		return r.hash(handle)
	}
}

func (r *Redactor) hash(data string) string {
	h := sha256.Sum256([]byte(data + r.salt))
	return hex.EncodeToString(h[:])[:8]
}
