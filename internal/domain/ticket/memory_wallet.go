package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryWallet simulates the ticket contract in memory. It backs dry runs
// of the CLI and tests.
type MemoryWallet struct {
	mu       sync.Mutex
	address  string
	network  string
	balances map[string]decimal.Decimal
	tickets  map[string]*Ticket
	nextID   int64
	txCount  int
	// Calls records every contract method invoked, in order.
	Calls []string
}

// NewMemoryWallet creates an empty simulated wallet.
func NewMemoryWallet(address, network string) *MemoryWallet {
	return &MemoryWallet{
		address:  address,
		network:  network,
		balances: map[string]decimal.Decimal{"eth": decimal.Zero},
		tickets:  make(map[string]*Ticket),
		nextID:   1,
	}
}

// Fund creates funded tickets for handle priced at amountWei each.
func (w *MemoryWallet) Fund(handle string, count int, amountWei int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("%d", w.nextID)
		w.nextID++
		w.tickets[id] = &Ticket{
			ID:         id,
			Owner:      "0x000000000000000000000000000000000000dEaD",
			AmountWei:  decimal.NewFromInt(amountWei),
			State:      StateFunded,
			BskyHandle: handle,
		}
	}
}

// SetBalance sets the wallet balance of assetID.
func (w *MemoryWallet) SetBalance(assetID string, amount decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[strings.ToLower(assetID)] = amount
}

// Available counts funded tickets for handle.
func (w *MemoryWallet) Available(handle string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, t := range w.tickets {
		if t.BskyHandle == handle && t.State == StateFunded {
			n++
		}
	}
	return n
}

func (w *MemoryWallet) Address() string   { return w.address }
func (w *MemoryWallet) NetworkID() string { return w.network }

// ReadContract answers the view methods of the ticket contract.
func (w *MemoryWallet) ReadContract(ctx context.Context, call ContractCall) (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls = append(w.Calls, call.Method)

	switch call.Method {
	case "getValidTicketId":
		handle, _ := call.Args["bskyHandle"].(string)
		for _, id := range w.sortedIDs() {
			t := w.tickets[id]
			if t.BskyHandle == handle && t.State == StateFunded {
				return json.Marshal(id)
			}
		}
		return json.RawMessage(`"0"`), nil
	case "verifyTicket":
		id := fmt.Sprint(call.Args["ticketId"])
		handle, _ := call.Args["bskyHandle"].(string)
		t, ok := w.tickets[id]
		if !ok {
			return json.Marshal([]any{false, StateNonExistent})
		}
		return json.Marshal([]any{t.BskyHandle == handle && t.State == StateFunded, t.State})
	case "tickets":
		id := fmt.Sprint(call.Args["ticketId"])
		t, ok := w.tickets[id]
		if !ok {
			return json.Marshal([]any{"0x0000000000000000000000000000000000000000", "0", "0", StateNonExistent, ""})
		}
		return json.Marshal([]any{t.Owner, t.ID, t.AmountWei.String(), t.State, t.BskyHandle})
	default:
		return nil, fmt.Errorf("unknown view method %s", call.Method)
	}
}

// InvokeContract applies the state changing methods of the ticket contract.
func (w *MemoryWallet) InvokeContract(ctx context.Context, call ContractCall) (*Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls = append(w.Calls, call.Method)

	switch call.Method {
	case "completeTicket":
		id := fmt.Sprint(call.Args["ticketId"])
		t, ok := w.tickets[id]
		if !ok || t.State != StateFunded {
			return nil, fmt.Errorf("execution reverted: ticket %s is not funded", id)
		}
		t.State = StateCompleted
		w.balances["eth"] = w.balances["eth"].Add(WeiToEth(t.AmountWei))
	case "withdraw":
		w.balances["eth"] = decimal.Zero
	default:
		return nil, fmt.Errorf("unknown method %s", call.Method)
	}

	w.txCount++
	return &Transaction{Hash: fmt.Sprintf("0x%064x", w.txCount), Status: "complete"}, nil
}

// Balance returns the simulated balance of assetID.
func (w *MemoryWallet) Balance(ctx context.Context, assetID string) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[strings.ToLower(assetID)], nil
}

func (w *MemoryWallet) sortedIDs() []string {
	ids := make([]string, 0, len(w.tickets))
	for id := range w.tickets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := decimal.NewFromString(ids[i])
		b, _ := decimal.NewFromString(ids[j])
		return a.LessThan(b)
	})
	return ids
}

var _ Wallet = (*MemoryWallet)(nil)
