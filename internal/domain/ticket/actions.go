package ticket

import (
	"context"
	"fmt"
	"strings"

	"github.com/janhq/mention-agent/internal/domain/action"
)

// Action names.
const (
	ActionGetValidTicket   = "get_valid_ticket"
	ActionReadTicket       = "read_ticket"
	ActionCompleteTicket   = "complete_ticket"
	ActionGetWalletBalance = "get_wallet_balance"
	ActionWithdrawTicket   = "withdraw_ticket"
)

// GetValidTicketArgs are the arguments of get_valid_ticket.
type GetValidTicketArgs struct {
	BskyHandle string `json:"bsky_handle" validate:"required" jsonschema_description:"The Bluesky handle to check for a valid ticket"`
}

// ValidTicket is the output of get_valid_ticket.
type ValidTicket struct {
	BskyHandle string `json:"bsky_handle"`
	TicketID   string `json:"ticket_id"`
	Available  int    `json:"available"`
}

// ReadTicketArgs are the arguments of read_ticket.
type ReadTicketArgs struct {
	TicketID   string `json:"ticket_id" validate:"required,numeric" jsonschema_description:"The ID of the ticket to read"`
	BskyHandle string `json:"bsky_handle" validate:"required" jsonschema_description:"The Bluesky handle the ticket should belong to"`
}

// TicketReport is the output of read_ticket.
type TicketReport struct {
	TicketID   string `json:"ticket_id"`
	BskyHandle string `json:"bsky_handle"`
	Valid      bool   `json:"valid"`
	State      string `json:"state"`
	Owner      string `json:"owner"`
	AmountWei  string `json:"amount_wei"`
	AmountEth  string `json:"amount_eth"`
}

// CompleteTicketArgs are the arguments of complete_ticket.
type CompleteTicketArgs struct {
	TicketID string `json:"ticket_id" validate:"required,numeric" jsonschema_description:"The ID of the ticket to complete"`
}

// WalletBalanceArgs are the arguments of get_wallet_balance.
type WalletBalanceArgs struct {
	AssetID string `json:"asset_id" validate:"required" jsonschema_description:"Asset to query. Use eth for the native asset"`
}

// WalletBalance is the output of get_wallet_balance.
type WalletBalance struct {
	Address   string `json:"address"`
	NetworkID string `json:"network_id"`
	AssetID   string `json:"asset_id"`
	Balance   string `json:"balance"`
}

// WithdrawArgs takes no input.
type WithdrawArgs struct{}

// ActionOptions toggles optional actions.
type ActionOptions struct {
	EnableWithdraw bool
}

// Actions returns the ticket and wallet actions backed by system.
func Actions(system *System, wallet Wallet, opts ActionOptions) []action.Action {
	actions := []action.Action{
		action.New(ActionGetValidTicket,
			"Query the ticket system contract for the valid ticket ID of a Bluesky handle. A ticket_id of 0 means the handle has no ticket.",
			func(ctx context.Context, args GetValidTicketArgs) (any, error) {
				handle := normalizeHandle(args.BskyHandle)
				id, err := system.ValidTicketID(ctx, handle)
				if err != nil {
					return nil, err
				}
				out := ValidTicket{BskyHandle: handle, TicketID: id}
				if !IsZeroID(id) {
					out.Available = 1
				}
				return out, nil
			},
			action.WithScope(action.ScopeModel|action.ScopeInternal),
		),
		action.New(ActionReadTicket,
			"Read a ticket's status and Bluesky handle given its ID.",
			func(ctx context.Context, args ReadTicketArgs) (any, error) {
				handle := normalizeHandle(args.BskyHandle)
				verification, err := system.Verify(ctx, args.TicketID, handle)
				if err != nil {
					return nil, err
				}
				t, err := system.Ticket(ctx, args.TicketID)
				if err != nil {
					return nil, err
				}
				return TicketReport{
					TicketID:   t.ID,
					BskyHandle: handle,
					Valid:      verification.Valid,
					State:      verification.State.String(),
					Owner:      t.Owner,
					AmountWei:  t.AmountWei.String(),
					AmountEth:  t.AmountEth().String(),
				}, nil
			},
		),
		action.New(ActionCompleteTicket,
			"Complete a ticket in the ticket system contract.",
			func(ctx context.Context, args CompleteTicketArgs) (any, error) {
				if IsZeroID(args.TicketID) {
					return nil, fmt.Errorf("ticket id 0 is not a valid ticket")
				}
				return system.Complete(ctx, args.TicketID)
			},
			action.WithScope(action.ScopeInternal),
		),
		action.New(ActionGetWalletBalance,
			"Get the balance of the agent's wallet for an asset.",
			func(ctx context.Context, args WalletBalanceArgs) (any, error) {
				assetID := strings.ToLower(strings.TrimSpace(args.AssetID))
				balance, err := wallet.Balance(ctx, assetID)
				if err != nil {
					return nil, err
				}
				return WalletBalance{
					Address:   wallet.Address(),
					NetworkID: wallet.NetworkID(),
					AssetID:   assetID,
					Balance:   balance.String(),
				}, nil
			},
		),
	}

	if opts.EnableWithdraw {
		actions = append(actions, action.New(ActionWithdrawTicket,
			"Withdraw accumulated funds from the ticket system contract.",
			func(ctx context.Context, _ WithdrawArgs) (any, error) {
				return system.Withdraw(ctx)
			},
		))
	}
	return actions
}

func normalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}
