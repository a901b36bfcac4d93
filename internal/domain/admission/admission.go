// Package admission decides whether a mention author may receive an answer
// and consumes the unit that pays for it.
package admission

import (
	"context"
	"fmt"
	"strings"

	"github.com/janhq/mention-agent/internal/config"
)

// DenyAction tells the processor what to do when Units is zero.
type DenyAction int

const (
	// DenyReplyPurchase posts the purchase reply.
	DenyReplyPurchase DenyAction = iota
	// DenySkip drops the mention silently.
	DenySkip
)

// String returns a label for logs and metrics.
func (a DenyAction) String() string {
	if a == DenySkip {
		return "skip"
	}
	return "purchase_reply"
}

// Decision is the result of an admission check.
type Decision struct {
	Units  int
	OnDeny DenyAction
}

// Admitted reports whether at least one unit is available.
func (d Decision) Admitted() bool {
	return d.Units > 0
}

// Gate checks and consumes admission units for an identity.
type Gate interface {
	// Policy names the gate for logs and metrics.
	Policy() string
	// Check counts available units. It never consumes.
	Check(ctx context.Context, identity string) (Decision, error)
	// Consume spends one unit. Call it only after a successful conversation.
	Consume(ctx context.Context, identity string) error
}

// ConsumeFailurePolicy controls the reply when Consume fails.
type ConsumeFailurePolicy string

const (
	// ConsumeFailurePost posts the reply anyway.
	ConsumeFailurePost ConsumeFailurePolicy = config.ConsumeFailurePost
	// ConsumeFailureWithhold drops the reply.
	ConsumeFailureWithhold ConsumeFailurePolicy = config.ConsumeFailureWithhold
)

// ParseConsumeFailurePolicy parses a policy name. Empty means post.
func ParseConsumeFailurePolicy(raw string) (ConsumeFailurePolicy, error) {
	switch ConsumeFailurePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ConsumeFailurePost:
		return ConsumeFailurePost, nil
	case ConsumeFailureWithhold:
		return ConsumeFailureWithhold, nil
	default:
		return "", fmt.Errorf("unknown consume failure policy %q", raw)
	}
}

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(identity), "@"))
}
