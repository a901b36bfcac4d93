package admission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/domain/action"
	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/status"
	"github.com/janhq/mention-agent/internal/domain/ticket"
	"github.com/janhq/mention-agent/internal/infrastructure/metrics"
	"github.com/janhq/mention-agent/internal/utils/idgen"
)

// TicketGate admits holders of a funded ticket. It goes through the
// internal-scope dispatcher so checks and consumes share the validation and
// instrumentation of model tool calls.
type TicketGate struct {
	dispatcher *action.Dispatcher
	log        zerolog.Logger
}

// NewTicketGate creates a gate over dispatcher, which must be able to reach
// get_valid_ticket and complete_ticket.
func NewTicketGate(dispatcher *action.Dispatcher, log zerolog.Logger) *TicketGate {
	return &TicketGate{
		dispatcher: dispatcher,
		log:        log.With().Str("component", "ticket_gate").Logger(),
	}
}

// Policy returns "ticket".
func (g *TicketGate) Policy() string {
	return config.AdmissionPolicyTicket
}

// Check reports one unit when the handle owns a funded ticket.
func (g *TicketGate) Check(ctx context.Context, identity string) (Decision, error) {
	valid, err := g.validTicket(ctx, identity)
	if err != nil {
		metrics.RecordAdmissionCheck(g.Policy(), "error")
		return Decision{}, err
	}

	decision := Decision{Units: valid.Available, OnDeny: DenyReplyPurchase}
	metrics.RecordAdmissionCheck(g.Policy(), admittedLabel(decision))
	return decision, nil
}

// Consume completes the handle's current valid ticket.
func (g *TicketGate) Consume(ctx context.Context, identity string) error {
	valid, err := g.validTicket(ctx, identity)
	if err != nil {
		return err
	}
	if ticket.IsZeroID(valid.TicketID) {
		return agentErrors.ErrNoValidTicket.WithDetails(map[string]any{"handle": valid.BskyHandle})
	}

	args, err := json.Marshal(ticket.CompleteTicketArgs{TicketID: valid.TicketID})
	if err != nil {
		return fmt.Errorf("encode complete_ticket args: %w", err)
	}
	result := g.dispatcher.Dispatch(ctx, action.Call{
		ID:        idgen.ToolCallID(),
		Name:      ticket.ActionCompleteTicket,
		Arguments: args,
	})
	if result.IsError() {
		return agentErrors.WrapAdmission(errors.New(result.Error), "complete ticket "+valid.TicketID)
	}

	g.log.Info().Str("ticket_id", valid.TicketID).Msg("ticket completed")
	return nil
}

func (g *TicketGate) validTicket(ctx context.Context, identity string) (ticket.ValidTicket, error) {
	args, err := json.Marshal(ticket.GetValidTicketArgs{BskyHandle: normalizeIdentity(identity)})
	if err != nil {
		return ticket.ValidTicket{}, fmt.Errorf("encode get_valid_ticket args: %w", err)
	}

	result := g.dispatcher.Dispatch(ctx, action.Call{
		ID:        idgen.ToolCallID(),
		Name:      ticket.ActionGetValidTicket,
		Arguments: args,
	})
	if result.IsError() {
		return ticket.ValidTicket{}, agentErrors.Wrap(errors.New(result.Error), agentErrors.KindAdmission,
			agentErrors.ErrCodeActionFailed, "check ticket", status.ErrorSeveritySkippable)
	}

	var valid ticket.ValidTicket
	if err := decodeOutput(result.Output, &valid); err != nil {
		return ticket.ValidTicket{}, fmt.Errorf("decode get_valid_ticket output: %w", err)
	}
	return valid, nil
}

// decodeOutput copies a dispatcher output into out, converting through JSON
// when the concrete type differs.
func decodeOutput(output any, out *ticket.ValidTicket) error {
	if v, ok := output.(ticket.ValidTicket); ok {
		*out = v
		return nil
	}
	data, err := json.Marshal(output)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func admittedLabel(d Decision) string {
	if d.Admitted() {
		return "admitted"
	}
	return "denied"
}

var _ Gate = (*TicketGate)(nil)
