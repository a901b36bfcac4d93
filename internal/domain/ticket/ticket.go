// Package ticket wraps the on-chain ticket system contract that gates
// replies, and exposes it as actions.
package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// State mirrors TicketSystem.TicketState.
type State uint8

const (
	StateNonExistent State = iota
	StateFunded
	StateCompleted
)

// String returns the contract's name for the state.
func (s State) String() string {
	switch s {
	case StateNonExistent:
		return "NonExistent"
	case StateFunded:
		return "Funded"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Ticket is one entry of the contract's tickets mapping.
type Ticket struct {
	ID         string          `json:"ticket_id"`
	Owner      string          `json:"owner"`
	AmountWei  decimal.Decimal `json:"amount_wei"`
	State      State           `json:"state"`
	BskyHandle string          `json:"bsky_handle"`
}

// AmountEth converts the ticket price to ether.
func (t Ticket) AmountEth() decimal.Decimal {
	return WeiToEth(t.AmountWei)
}

// Verification is the result of verifyTicket.
type Verification struct {
	Valid bool  `json:"valid"`
	State State `json:"state"`
}

// ContractCall describes a contract method invocation.
type ContractCall struct {
	ContractAddress string          `json:"contract_address"`
	Method          string          `json:"method"`
	Args            map[string]any  `json:"args"`
	ABI             json.RawMessage `json:"abi"`
}

// Transaction is a submitted contract transaction.
type Transaction struct {
	Hash   string `json:"transaction_hash"`
	Status string `json:"status"`
	Link   string `json:"transaction_link,omitempty"`
}

// Wallet is the custodial wallet used to talk to the chain.
type Wallet interface {
	Address() string
	NetworkID() string
	ReadContract(ctx context.Context, call ContractCall) (json.RawMessage, error)
	InvokeContract(ctx context.Context, call ContractCall) (*Transaction, error)
	Balance(ctx context.Context, assetID string) (decimal.Decimal, error)
}

// System is a client for the ticket system contract.
type System struct {
	wallet   Wallet
	contract string
}

// NewSystem binds the contract at address to wallet.
func NewSystem(wallet Wallet, address string) *System {
	return &System{wallet: wallet, contract: address}
}

// Contract returns the contract address.
func (s *System) Contract() string {
	return s.contract
}

// ValidTicketID returns the id of a funded ticket for handle, or "0" when
// there is none.
func (s *System) ValidTicketID(ctx context.Context, handle string) (string, error) {
	raw, err := s.wallet.ReadContract(ctx, s.call("getValidTicketId", map[string]any{"bskyHandle": handle}))
	if err != nil {
		return "", fmt.Errorf("getValidTicketId: %w", err)
	}
	id, err := parseUint(raw)
	if err != nil {
		return "", fmt.Errorf("getValidTicketId: %w", err)
	}
	return id.String(), nil
}

// Verify checks that ticket id belongs to handle.
func (s *System) Verify(ctx context.Context, id, handle string) (Verification, error) {
	raw, err := s.wallet.ReadContract(ctx, s.call("verifyTicket", map[string]any{"ticketId": id, "bskyHandle": handle}))
	if err != nil {
		return Verification{}, fmt.Errorf("verifyTicket: %w", err)
	}

	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil || len(out) != 2 {
		return Verification{}, fmt.Errorf("verifyTicket: unexpected result %s", string(raw))
	}
	var valid bool
	if err := json.Unmarshal(out[0], &valid); err != nil {
		return Verification{}, fmt.Errorf("verifyTicket: decode isValid: %w", err)
	}
	state, err := parseUint(out[1])
	if err != nil {
		return Verification{}, fmt.Errorf("verifyTicket: decode state: %w", err)
	}
	return Verification{Valid: valid, State: State(state.IntPart())}, nil
}

// Ticket reads the tickets mapping entry for id.
func (s *System) Ticket(ctx context.Context, id string) (*Ticket, error) {
	raw, err := s.wallet.ReadContract(ctx, s.call("tickets", map[string]any{"ticketId": id}))
	if err != nil {
		return nil, fmt.Errorf("tickets: %w", err)
	}

	// owner, ticketId, amount, state, bskyHandle
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil || len(out) != 5 {
		return nil, fmt.Errorf("tickets: unexpected result %s", string(raw))
	}

	t := &Ticket{}
	if err := json.Unmarshal(out[0], &t.Owner); err != nil {
		return nil, fmt.Errorf("tickets: decode owner: %w", err)
	}
	ticketID, err := parseUint(out[1])
	if err != nil {
		return nil, fmt.Errorf("tickets: decode id: %w", err)
	}
	t.ID = ticketID.String()
	if t.AmountWei, err = parseUint(out[2]); err != nil {
		return nil, fmt.Errorf("tickets: decode amount: %w", err)
	}
	state, err := parseUint(out[3])
	if err != nil {
		return nil, fmt.Errorf("tickets: decode state: %w", err)
	}
	t.State = State(state.IntPart())
	if err := json.Unmarshal(out[4], &t.BskyHandle); err != nil {
		return nil, fmt.Errorf("tickets: decode handle: %w", err)
	}
	return t, nil
}

// Complete marks ticket id as used.
func (s *System) Complete(ctx context.Context, id string) (*Transaction, error) {
	tx, err := s.wallet.InvokeContract(ctx, s.call("completeTicket", map[string]any{"ticketId": id}))
	if err != nil {
		return nil, fmt.Errorf("completeTicket %s: %w", id, err)
	}
	return tx, nil
}

// Withdraw moves accumulated ticket payments to the owner.
func (s *System) Withdraw(ctx context.Context) (*Transaction, error) {
	tx, err := s.wallet.InvokeContract(ctx, s.call("withdraw", map[string]any{}))
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return tx, nil
}

func (s *System) call(method string, args map[string]any) ContractCall {
	return ContractCall{
		ContractAddress: s.contract,
		Method:          method,
		Args:            args,
		ABI:             abiFor(method),
	}
}

// WeiToEth converts a wei amount to ether.
func WeiToEth(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-18)
}

// IsZeroID reports whether id is the contract's "no ticket" value.
func IsZeroID(id string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(id))
	return err != nil || d.IsZero()
}

// parseUint accepts a JSON number or a decimal string.
func parseUint(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %s", string(raw))
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("not an unsigned integer: %s", text)
	}
	return d, nil
}
