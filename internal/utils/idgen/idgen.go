package idgen

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu   sync.Mutex
	entropyOnce sync.Once
	entropy     *ulid.MonotonicEntropy
)

func newEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		source := rand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(rand.New(source), 0)
	})
	return entropy
}

// PassID returns a time ordered pass_* identifier.
func PassID() string {
	return "pass_" + newULID(time.Now())
}

// RunID returns a time ordered run_* identifier for one conversation.
func RunID() string {
	return "run_" + newULID(time.Now())
}

// ToolCallID returns an id for a tool call the model left unnamed.
func ToolCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Time extracts the creation time from an id produced by PassID or RunID.
func Time(id string) (time.Time, bool) {
	idx := strings.IndexByte(id, '_')
	if idx < 0 {
		return time.Time{}, false
	}
	parsed, err := ulid.ParseStrict(strings.ToUpper(id[idx+1:]))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

func newULID(at time.Time) string {
	// MonotonicEntropy is not safe for concurrent use
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(at), newEntropy())
	return strings.ToLower(id.String())
}
