package bluesky_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rivo/uniseg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/infrastructure/bluesky"
)

func token(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("pds-secret"))
	require.NoError(t, err)
	return signed
}

// fakePDS serves the XRPC endpoints the client uses.
type fakePDS struct {
	t *testing.T

	mu            sync.Mutex
	access        string
	refresh       string
	expireNext    bool
	refreshes     int
	logins        int
	seenAt        string
	created       map[string]any
	notifications [][]map[string]any
}

func newFakePDS(t *testing.T) (*fakePDS, *httptest.Server) {
	pds := &fakePDS{t: t}
	server := httptest.NewServer(http.HandlerFunc(pds.serve))
	t.Cleanup(server.Close)
	return pds, server
}

func (p *fakePDS) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (p *fakePDS) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	nsid := strings.TrimPrefix(r.URL.Path, "/xrpc/")
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	switch nsid {
	case "com.atproto.server.createSession":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "app-pass" {
			p.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "AuthenticationRequired", "message": "Invalid identifier or password"})
			return
		}
		p.logins++
		p.issue(w)
		return
	case "com.atproto.server.refreshSession":
		if bearer != p.refresh {
			p.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ExpiredToken", "message": "Token has expired"})
			return
		}
		p.refreshes++
		p.issue(w)
		return
	}

	if bearer != p.access || p.expireNext {
		p.expireNext = false
		p.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ExpiredToken", "message": "Token has expired"})
		return
	}

	switch nsid {
	case "app.bsky.notification.listNotifications":
		page := 0
		if c := r.URL.Query().Get("cursor"); c != "" {
			page = int(c[0] - '0')
		}
		out := map[string]any{"notifications": p.notifications[page]}
		if page+1 < len(p.notifications) {
			out["cursor"] = string(rune('0' + page + 1))
		}
		p.writeJSON(w, http.StatusOK, out)
	case "app.bsky.notification.updateSeen":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		p.seenAt = body["seenAt"]
		w.WriteHeader(http.StatusOK)
	case "app.bsky.feed.getPostThread":
		assert.Equal(p.t, "1", r.URL.Query().Get("depth"))
		assert.Equal(p.t, "80", r.URL.Query().Get("parentHeight"))
		p.writeJSON(w, http.StatusOK, map[string]any{"thread": map[string]any{
			"$type": "app.bsky.feed.defs#threadViewPost",
			"post":  post(r.URL.Query().Get("uri"), "alice.bsky.social", "@bot hi"),
			"parent": map[string]any{
				"$type":  "app.bsky.feed.defs#threadViewPost",
				"post":   post("at://alice/post/1", "alice.bsky.social", "first"),
				"parent": map[string]any{"$type": "app.bsky.feed.defs#notFoundPost", "uri": "at://gone", "notFound": true},
			},
			"replies": []any{
				map[string]any{"$type": "app.bsky.feed.defs#threadViewPost", "post": post("at://bot/post/9", "bot.bsky.social", "hi")},
			},
		}})
	case "com.atproto.repo.createRecord":
		_ = json.NewDecoder(r.Body).Decode(&p.created)
		p.writeJSON(w, http.StatusOK, map[string]string{"uri": "at://did:plc:bot/app.bsky.feed.post/new", "cid": "bafynew"})
	case "app.bsky.feed.getTimeline":
		p.writeJSON(w, http.StatusOK, map[string]any{"feed": []any{
			map[string]any{"post": post("at://carol/post/1", "carol.bsky.social", "gm")},
		}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *fakePDS) issue(w http.ResponseWriter) {
	p.access = token(p.t, "did:plc:bot", time.Now().Add(2*time.Hour))
	p.refresh = "refresh-" + p.access[len(p.access)-8:]
	p.writeJSON(w, http.StatusOK, map[string]string{
		"accessJwt":  p.access,
		"refreshJwt": p.refresh,
		"handle":     "bot.bsky.social",
		"did":        "did:plc:bot",
	})
}

func post(uri, handle, text string) map[string]any {
	return map[string]any{
		"uri":       uri,
		"cid":       "cid-" + uri,
		"author":    map[string]string{"did": "did:plc:" + strings.Split(handle, ".")[0], "handle": handle},
		"record":    map[string]string{"$type": "app.bsky.feed.post", "text": text},
		"indexedAt": "2026-03-01T12:00:00Z",
	}
}

func notif(uri string, indexedAt time.Time) map[string]any {
	return map[string]any{
		"uri":       uri,
		"cid":       "cid-" + uri,
		"author":    map[string]string{"did": "did:plc:alice", "handle": "alice.bsky.social"},
		"reason":    "mention",
		"record":    map[string]string{"$type": "app.bsky.feed.post", "text": "@bot hi"},
		"isRead":    false,
		"indexedAt": indexedAt.Format(time.RFC3339),
	}
}

func newClient(t *testing.T, server *httptest.Server) *bluesky.Client {
	t.Helper()
	client := bluesky.NewClient(bluesky.Config{
		ServiceURL:  server.URL,
		Identifier:  "bot.bsky.social",
		AppPassword: "app-pass",
		PageSize:    2,
	}, zerolog.Nop())
	require.NoError(t, client.Login(context.Background()))
	return client
}

func TestClient_LoginAndIdentity(t *testing.T) {
	_, server := newFakePDS(t)
	client := newClient(t, server)

	handle, did := client.Identity()
	assert.Equal(t, "bot.bsky.social", handle)
	assert.Equal(t, "did:plc:bot", did)

	exp, err := client.AccessExpiry()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), exp, time.Minute)
}

func TestClient_LoginRejected(t *testing.T) {
	_, server := newFakePDS(t)
	client := bluesky.NewClient(bluesky.Config{ServiceURL: server.URL, Identifier: "bot", AppPassword: "wrong"}, zerolog.Nop())

	err := client.Login(context.Background())
	require.Error(t, err)
	var xerr *bluesky.XRPCError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "AuthenticationRequired", xerr.Name)

	var httpErr *agentErrors.HTTPStatusError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestClient_ListPendingPagesUntilSince(t *testing.T) {
	pds, server := newFakePDS(t)
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pds.notifications = [][]map[string]any{
		{notif("at://n/4", since.Add(3*time.Minute)), notif("at://n/3", since.Add(2*time.Minute))},
		{notif("at://n/2", since.Add(time.Minute)), notif("at://n/1", since.Add(-time.Minute))},
		{notif("at://n/0", since.Add(-time.Hour))},
	}
	client := newClient(t, server)

	got, err := client.ListPending(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "at://n/4", got[0].URI)
	assert.Equal(t, "at://n/2", got[2].URI)
	assert.Equal(t, notification.ReasonMention, got[0].Reason)
	assert.Equal(t, "alice.bsky.social", got[0].Author.Handle)
	assert.Equal(t, "@bot hi", got[0].Text)

	first, err := client.ListPending(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, first, 2, "zero since reads one page")
}

func TestClient_RefreshesExpiredToken(t *testing.T) {
	pds, server := newFakePDS(t)
	pds.notifications = [][]map[string]any{{}}
	client := newClient(t, server)

	pds.mu.Lock()
	pds.expireNext = true
	pds.mu.Unlock()

	_, err := client.ListPending(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, pds.refreshes)
	assert.Equal(t, 1, pds.logins)
}

func TestClient_MarkSeen(t *testing.T) {
	pds, server := newFakePDS(t)
	client := newClient(t, server)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, client.MarkSeen(context.Background(), at))
	assert.Equal(t, "2026-03-01T12:00:00Z", pds.seenAt)
}

func TestClient_GetThread(t *testing.T) {
	_, server := newFakePDS(t)
	client := newClient(t, server)

	thread, err := client.GetThread(context.Background(), "at://alice/post/2")
	require.NoError(t, err)
	assert.Equal(t, "at://alice/post/2", thread.Post.Ref.URI)
	assert.Equal(t, notification.PostRef{URI: "at://alice/post/1", CID: "cid-at://alice/post/1"}, thread.Root())
	assert.True(t, thread.HasReplyFrom("bot.bsky.social", ""))
	assert.False(t, thread.HasReplyFrom("someone.else", "did:plc:other"))
}

func TestClient_Reply(t *testing.T) {
	pds, server := newFakePDS(t)
	client := newClient(t, server)

	parent := notification.PostRef{URI: "at://alice/post/2", CID: "c2"}
	root := notification.PostRef{URI: "at://alice/post/1", CID: "c1"}
	ref, err := client.Reply(context.Background(), parent, root, strings.Repeat("ab ", 200))
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:bot/app.bsky.feed.post/new", ref.URI)

	assert.Equal(t, "did:plc:bot", pds.created["repo"])
	assert.Equal(t, "app.bsky.feed.post", pds.created["collection"])
	record := pds.created["record"].(map[string]any)
	text := record["text"].(string)
	assert.LessOrEqual(t, uniseg.GraphemeClusterCount(text), bluesky.MaxPostGraphemes)
	assert.True(t, strings.HasSuffix(text, "…"))

	reply := record["reply"].(map[string]any)
	assert.Equal(t, "at://alice/post/1", reply["root"].(map[string]any)["uri"])
	assert.Equal(t, "at://alice/post/2", reply["parent"].(map[string]any)["uri"])
}

func TestClient_Timeline(t *testing.T) {
	_, server := newFakePDS(t)
	client := newClient(t, server)

	posts, err := client.Timeline(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "carol.bsky.social", posts[0].Author)
	assert.Equal(t, "gm", posts[0].Text)
}

func TestClient_RequiresLogin(t *testing.T) {
	_, server := newFakePDS(t)
	client := bluesky.NewClient(bluesky.Config{ServiceURL: server.URL}, zerolog.Nop())

	_, err := client.ListPending(context.Background(), time.Time{})
	assert.ErrorIs(t, err, bluesky.ErrNotLoggedIn)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{name: "short", text: "hello", limit: 10, want: "hello"},
		{name: "exact", text: "hello", limit: 5, want: "hello"},
		{name: "cut", text: "hello world", limit: 6, want: "hello…"},
		{name: "emoji clusters", text: "👍🏽👍🏽👍🏽", limit: 2, want: "👍🏽…"},
		{name: "trims", text: "  padded  ", limit: 10, want: "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bluesky.Truncate(tt.text, tt.limit))
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, err := bluesky.TokenExpiry(token(t, "did:plc:x", exp))
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	_, err = bluesky.TokenExpiry("not-a-jwt")
	assert.Error(t, err)
}

func TestClient_EnsureFresh(t *testing.T) {
	pds, server := newFakePDS(t)
	client := newClient(t, server)
	ctx := context.Background()

	require.NoError(t, client.EnsureFresh(ctx, time.Now()))
	assert.Equal(t, 0, pds.refreshes)

	require.NoError(t, client.EnsureFresh(ctx, time.Now().Add(90*time.Minute)))
	assert.Equal(t, 1, pds.refreshes)
}

func TestSessionRefresher_RejectsBadSchedule(t *testing.T) {
	_, server := newFakePDS(t)
	refresher := bluesky.NewSessionRefresher(newClient(t, server), "not a cron", zerolog.Nop())

	err := refresher.Run(context.Background())
	assert.Error(t, err)
}
