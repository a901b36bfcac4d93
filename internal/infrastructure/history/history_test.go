package history

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/mention-agent/internal/domain/action"
	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/domain/status"
)

func TestMemory_ContainsAfterRecord(t *testing.T) {
	ctx := context.Background()
	h, err := NewMemory(0)
	require.NoError(t, err)

	ok, err := h.Contains(ctx, "at://did:plc:alice/app.bsky.feed.post/1")
	require.NoError(t, err)
	assert.False(t, ok)

	record := notification.Record{
		NotificationURI: "at://did:plc:alice/app.bsky.feed.post/1",
		Outcome:         status.OutcomeReplied,
		ReplyURI:        "at://did:plc:bot/app.bsky.feed.post/9",
	}
	require.NoError(t, h.Record(ctx, record))

	ok, err = h.Contains(ctx, record.NotificationURI)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, found := h.Get(record.NotificationURI)
	require.True(t, found)
	assert.Equal(t, record, stored)
	assert.Equal(t, 1, h.Len())
}

func TestMemory_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	h, err := NewMemory(2)
	require.NoError(t, err)

	for _, uri := range []string{"a", "b", "c"} {
		require.NoError(t, h.Record(ctx, notification.Record{NotificationURI: uri}))
	}

	ok, _ := h.Contains(ctx, "a")
	assert.False(t, ok)
	ok, _ = h.Contains(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, h.Len())
}

func TestNewPostgres_RequiresDatabase(t *testing.T) {
	_, err := NewPostgres(nil, 10, zerolog.Nop())
	assert.Error(t, err)
}

func TestEntityConversion(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := notification.Record{
		NotificationURI: "at://n/1",
		ThreadRootURI:   "at://root/1",
		AuthorHandle:    "alice.bsky.social",
		Outcome:         status.OutcomeWithheld,
		RunID:           "01HZY",
		ConsumeError:    "execution reverted",
		Executions: []action.Execution{{
			Call:     action.Call{ID: "c1", Name: "get_valid_ticket", Arguments: json.RawMessage(`{"bsky_handle":"alice"}`)},
			Result:   action.Result{ID: "c1", Output: "7"},
			Duration: time.Second,
		}},
		CreatedAt: created,
	}

	row, err := toEntity(record)
	require.NoError(t, err)
	assert.Equal(t, "withheld", row.Outcome)
	assert.Equal(t, "execution reverted", row.ConsumeError)
	assert.Contains(t, string(row.Executions), `"get_valid_ticket"`)

	back, err := fromEntity(row)
	require.NoError(t, err)
	assert.Equal(t, record.NotificationURI, back.NotificationURI)
	assert.Equal(t, record.Outcome, back.Outcome)
	assert.Equal(t, created, back.CreatedAt)
	require.Len(t, back.Executions, 1)
	assert.Equal(t, "c1", back.Executions[0].Call.ID)
	assert.Equal(t, "7", back.Executions[0].Result.Output)
}

func TestEntityConversion_NoExecutions(t *testing.T) {
	row, err := toEntity(notification.Record{NotificationURI: "at://n/2", Outcome: status.OutcomeSkippedDenied})
	require.NoError(t, err)
	assert.Empty(t, row.Executions)

	back, err := fromEntity(row)
	require.NoError(t, err)
	assert.Nil(t, back.Executions)
}
