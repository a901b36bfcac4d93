// Package notification turns the Bluesky mention feed into at most one
// reply per thread.
package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/janhq/mention-agent/internal/domain/action"
	"github.com/janhq/mention-agent/internal/domain/status"
)

// ReasonMention is the notification reason the processor answers.
const ReasonMention = "mention"

// ErrPassLocked is returned by a PassLock held by another worker.
var ErrPassLocked = errors.New("notification pass is locked by another worker")

// ErrPassLeaseLost ends a pass whose lock expired or was taken over. The
// watermark is left where it was.
var ErrPassLeaseLost = errors.New("notification pass lock lease lost")

// PostRef is a strong reference to a post.
type PostRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Author identifies an account.
type Author struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// Is reports whether a matches handle or did. Empty values never match.
func (a Author) Is(handle, did string) bool {
	if handle != "" && strings.EqualFold(a.Handle, handle) {
		return true
	}
	return did != "" && a.DID == did
}

// Notification is one entry of the feed. It is not modified after fetch.
type Notification struct {
	URI       string    `json:"uri"`
	CID       string    `json:"cid"`
	Author    Author    `json:"author"`
	Reason    string    `json:"reason"`
	Text      string    `json:"text"`
	IsRead    bool      `json:"is_read"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Ref returns the notification's post reference.
func (n Notification) Ref() PostRef {
	return PostRef{URI: n.URI, CID: n.CID}
}

// Post is a node of a thread.
type Post struct {
	Ref    PostRef `json:"ref"`
	Author Author  `json:"author"`
	Text   string  `json:"text"`
}

// Thread is a post with its ancestors and direct replies.
type Thread struct {
	Post    Post      `json:"post"`
	Parent  *Thread   `json:"parent,omitempty"`
	Replies []*Thread `json:"replies,omitempty"`
}

// Root returns the top-most ancestor of the thread.
func (t *Thread) Root() PostRef {
	node := t
	for node.Parent != nil {
		node = node.Parent
	}
	return node.Post.Ref
}

// HasReplyFrom reports whether any direct reply is authored by handle or did.
func (t *Thread) HasReplyFrom(handle, did string) bool {
	for _, r := range t.Replies {
		if r != nil && r.Post.Author.Is(handle, did) {
			return true
		}
	}
	return false
}

// Source is the notification feed.
type Source interface {
	// ListPending returns notifications indexed at or after since.
	ListPending(ctx context.Context, since time.Time) ([]Notification, error)
	// MarkSeen marks everything up to at as read.
	MarkSeen(ctx context.Context, at time.Time) error
	GetThread(ctx context.Context, uri string) (*Thread, error)
}

// Poster publishes replies.
type Poster interface {
	Reply(ctx context.Context, parent, root PostRef, text string) (PostRef, error)
}

// Record is what the history keeps about a processed notification.
type Record struct {
	NotificationURI string             `json:"notification_uri"`
	ThreadRootURI   string             `json:"thread_root_uri"`
	AuthorHandle    string             `json:"author_handle"`
	Outcome         status.Outcome     `json:"outcome"`
	ReplyURI        string             `json:"reply_uri,omitempty"`
	RunID           string             `json:"run_id,omitempty"`
	Error           string             `json:"error,omitempty"`
	ConsumeError    string             `json:"consume_error,omitempty"`
	Executions      []action.Execution `json:"executions,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// History remembers processed notifications.
type History interface {
	Contains(ctx context.Context, notificationURI string) (bool, error)
	Record(ctx context.Context, record Record) error
}

// WatermarkStore persists the pass watermark. Save never moves it backwards.
type WatermarkStore interface {
	Load(ctx context.Context) (time.Time, error)
	Save(ctx context.Context, at time.Time) error
}

// PassLock serialises passes across replicas.
type PassLock interface {
	// TryLock returns ErrPassLocked when another worker holds the lock.
	TryLock(ctx context.Context) (Lease, error)
}

// Lease is a held PassLock.
type Lease interface {
	// Valid reports whether the lock is still held by this worker.
	Valid() bool
	Release(ctx context.Context) error
}

// Clock is the processor's time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
