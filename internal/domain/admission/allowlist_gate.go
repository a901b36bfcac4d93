package admission

import (
	"context"

	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/infrastructure/metrics"
)

// AllowlistGate admits a fixed set of handles without any payment. Other
// handles are skipped without a purchase reply.
type AllowlistGate struct {
	allowed map[string]struct{}
}

// NewAllowlistGate creates a gate for handles. Leading "@" and case are
// ignored.
func NewAllowlistGate(handles []string) *AllowlistGate {
	allowed := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		if n := normalizeIdentity(h); n != "" {
			allowed[n] = struct{}{}
		}
	}
	return &AllowlistGate{allowed: allowed}
}

// Policy returns "allowlist".
func (g *AllowlistGate) Policy() string {
	return config.AdmissionPolicyAllowlist
}

// Check returns one unit for listed handles.
func (g *AllowlistGate) Check(ctx context.Context, identity string) (Decision, error) {
	decision := Decision{OnDeny: DenySkip}
	if _, ok := g.allowed[normalizeIdentity(identity)]; ok {
		decision.Units = 1
	}
	metrics.RecordAdmissionCheck(g.Policy(), admittedLabel(decision))
	return decision, nil
}

// Consume is a no-op.
func (g *AllowlistGate) Consume(ctx context.Context, identity string) error {
	return nil
}

var _ Gate = (*AllowlistGate)(nil)
