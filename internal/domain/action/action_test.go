package action_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/mention-agent/internal/domain/action"
)

type balanceArgs struct {
	AssetID string `json:"asset_id" validate:"required,oneof=eth usdc" jsonschema_description:"Asset to query"`
}

type handleArgs struct {
	Handle string `json:"bsky_handle" validate:"required,min=3"`
}

func newRegistry(t *testing.T) (*action.Registry, *int) {
	t.Helper()
	executions := 0
	registry := action.NewRegistry()
	registry.MustRegister(
		action.New("get_wallet_balance", "Read the wallet balance", func(ctx context.Context, args balanceArgs) (any, error) {
			executions++
			return map[string]string{"asset_id": args.AssetID, "balance": "0.5"}, nil
		}),
		action.New("consume", "Consume a unit", func(ctx context.Context, args handleArgs) (any, error) {
			executions++
			return "consumed " + args.Handle, nil
		}, action.WithScope(action.ScopeInternal)),
		action.New("explode", "Always fails", func(ctx context.Context, args struct{}) (any, error) {
			return nil, errors.New("contract reverted")
		}),
		action.New("panics", "Always panics", func(ctx context.Context, args struct{}) (any, error) {
			panic("boom")
		}),
	)
	return registry, &executions
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	registry := action.NewRegistry()
	noop := func(ctx context.Context, args struct{}) (any, error) { return nil, nil }

	require.NoError(t, registry.Register(action.New("a", "first", noop)))
	err := registry.Register(action.New("a", "second", noop))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, registry.Register(action.New(" ", "blank", noop)))
}

func TestRegistry_ToolsRespectScope(t *testing.T) {
	registry, _ := newRegistry(t)

	assert.Equal(t, []string{"get_wallet_balance", "explode", "panics"}, registry.Names(action.ScopeModel))
	assert.Equal(t, []string{"consume"}, registry.Names(action.ScopeInternal))

	tools := registry.Tools(action.ScopeModel)
	require.Len(t, tools, 3)
	assert.Equal(t, "get_wallet_balance", tools[0].Function.Name)
	assert.True(t, tools[0].Function.Strict)

	params, err := json.Marshal(tools[0].Function.Parameters)
	require.NoError(t, err)
	assert.Contains(t, string(params), `"asset_id"`)
	assert.Contains(t, string(params), `"required":["asset_id"]`)
	assert.Contains(t, string(params), `"additionalProperties":false`)
	assert.NotContains(t, string(params), `$schema`)
}

func TestDispatcher_Dispatch(t *testing.T) {
	registry, executions := newRegistry(t)
	dispatcher := action.NewDispatcher(registry, action.ScopeModel, time.Second, zerolog.Nop())

	tests := []struct {
		name       string
		call       action.Call
		wantError  string
		wantOutput any
	}{
		{
			name:       "success",
			call:       action.Call{ID: "c1", Name: "get_wallet_balance", Arguments: json.RawMessage(`{"asset_id":"eth"}`)},
			wantOutput: map[string]string{"asset_id": "eth", "balance": "0.5"},
		},
		{
			name:       "malformed json is repaired",
			call:       action.Call{ID: "c2", Name: "get_wallet_balance", Arguments: json.RawMessage(`{'asset_id': 'usdc'`)},
			wantOutput: map[string]string{"asset_id": "usdc", "balance": "0.5"},
		},
		{
			name:      "unknown tool",
			call:      action.Call{ID: "c3", Name: "transfer_all", Arguments: json.RawMessage(`{}`)},
			wantError: "Tool 'transfer_all' not found",
		},
		{
			name:      "internal action is hidden from the model",
			call:      action.Call{ID: "c4", Name: "consume", Arguments: json.RawMessage(`{"bsky_handle":"alice"}`)},
			wantError: "Tool 'consume' not found",
		},
		{
			name:      "validation failure",
			call:      action.Call{ID: "c5", Name: "get_wallet_balance", Arguments: json.RawMessage(`{"asset_id":"doge"}`)},
			wantError: "asset_id failed oneof=eth usdc",
		},
		{
			name:      "unknown field",
			call:      action.Call{ID: "c6", Name: "get_wallet_balance", Arguments: json.RawMessage(`{"asset_id":"eth","to":"0xabc"}`)},
			wantError: "invalid arguments",
		},
		{
			name:      "executor error",
			call:      action.Call{ID: "c7", Name: "explode"},
			wantError: "contract reverted",
		},
		{
			name:      "executor panic",
			call:      action.Call{ID: "c8", Name: "panics"},
			wantError: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result action.Result
			require.NotPanics(t, func() {
				result = dispatcher.Dispatch(context.Background(), tt.call)
			})

			assert.Equal(t, tt.call.ID, result.ID)
			if tt.wantError != "" {
				assert.True(t, result.IsError())
				assert.Contains(t, result.Error, tt.wantError)
				return
			}
			assert.False(t, result.IsError())
			assert.Equal(t, tt.wantOutput, result.Output)
		})
	}

	assert.Equal(t, 2, *executions)
}

func TestResult_Content(t *testing.T) {
	ok := action.Result{ID: "c1", Output: "done"}
	assert.JSONEq(t, `{"id":"c1","result":"done"}`, ok.Content())

	failed := action.Result{ID: "c2", Error: "nope", Code: "ACTION_FAILED"}
	assert.JSONEq(t, `{"id":"c2","error":"nope"}`, failed.Content())

	unserialisable := action.Result{ID: "c3", Output: make(chan int)}
	assert.Contains(t, unserialisable.Content(), "not serialisable")
}

func TestSession_DispatchesEachIDOnce(t *testing.T) {
	registry, executions := newRegistry(t)
	session := action.NewDispatcher(registry, action.ScopeInternal, 0, zerolog.Nop()).NewSession()

	call := action.Call{ID: "dup", Name: "consume", Arguments: json.RawMessage(`{"bsky_handle":"alice"}`)}
	first := session.Dispatch(context.Background(), call)
	second := session.Dispatch(context.Background(), call)

	assert.False(t, first.IsError())
	assert.True(t, second.IsError())
	assert.Contains(t, second.Error, "already executed")
	assert.Equal(t, 1, *executions)

	log := session.Executions()
	require.Len(t, log, 2)
	assert.Equal(t, "dup", log[1].Result.ID)
}

func TestDispatcher_TimeoutReachesExecutor(t *testing.T) {
	registry := action.NewRegistry()
	registry.MustRegister(action.New("slow", "waits for cancellation", func(ctx context.Context, args struct{}) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	dispatcher := action.NewDispatcher(registry, action.ScopeModel, 10*time.Millisecond, zerolog.Nop())

	result := dispatcher.Dispatch(context.Background(), action.Call{ID: "s1", Name: "slow"})
	assert.True(t, result.IsError())
	assert.Contains(t, result.Error, "deadline exceeded")
}
