package bluesky

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rivo/uniseg"

	"github.com/janhq/mention-agent/internal/domain/notification"
)

const (
	// MaxPostGraphemes is the app.bsky.feed.post text limit.
	MaxPostGraphemes = 300
	postCollection   = "app.bsky.feed.post"
	ellipsis         = "…"
)

type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

type feedPost struct {
	Type      string    `json:"$type"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Reply     *replyRef `json:"reply,omitempty"`
}

type createRecordInput struct {
	Repo       string   `json:"repo"`
	Collection string   `json:"collection"`
	Record     feedPost `json:"record"`
}

// Reply posts text as a reply to parent within the thread rooted at root.
// Text longer than MaxPostGraphemes is truncated with an ellipsis.
func (c *Client) Reply(ctx context.Context, parent, root notification.PostRef, text string) (notification.PostRef, error) {
	_, did := c.Identity()
	if did == "" {
		return notification.PostRef{}, ErrNotLoggedIn
	}

	input := createRecordInput{
		Repo:       did,
		Collection: postCollection,
		Record: feedPost{
			Type:      postCollection,
			Text:      Truncate(text, MaxPostGraphemes),
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
			Reply: &replyRef{
				Root:   strongRef{URI: root.URI, CID: root.CID},
				Parent: strongRef{URI: parent.URI, CID: parent.CID},
			},
		},
	}

	var out strongRef
	err := c.call(ctx, http.MethodPost, "com.atproto.repo.createRecord", func(r *resty.Request) {
		r.SetBody(input)
	}, &out)
	if err != nil {
		return notification.PostRef{}, err
	}
	c.log.Debug().Str("uri", out.URI).Str("parent", parent.URI).Msg("reply posted")
	return notification.PostRef{URI: out.URI, CID: out.CID}, nil
}

// Truncate shortens text to at most limit grapheme clusters, replacing the
// tail with an ellipsis when anything is cut.
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || uniseg.GraphemeClusterCount(text) <= limit {
		return text
	}

	var b strings.Builder
	g := uniseg.NewGraphemes(text)
	for n := 0; n < limit-1 && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	return strings.TrimRightFunc(b.String(), isSpace) + ellipsis
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

// TimelinePost is one entry of the home timeline.
type TimelinePost struct {
	URI       string    `json:"uri"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	IndexedAt time.Time `json:"indexed_at"`
}

type feedViewPost struct {
	Post postView `json:"post"`
}

type getTimelineOutput struct {
	Cursor string         `json:"cursor"`
	Feed   []feedViewPost `json:"feed"`
}

// Timeline returns the newest limit posts of the account's home timeline.
func (c *Client) Timeline(ctx context.Context, limit int) ([]TimelinePost, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var resp getTimelineOutput
	err := c.call(ctx, http.MethodGet, "app.bsky.feed.getTimeline", func(r *resty.Request) {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}, &resp)
	if err != nil {
		return nil, err
	}

	posts := make([]TimelinePost, 0, len(resp.Feed))
	for _, item := range resp.Feed {
		posts = append(posts, TimelinePost{
			URI:       item.Post.URI,
			Author:    item.Post.Author.Handle,
			Text:      item.Post.Record.Text,
			IndexedAt: item.Post.IndexedAt,
		})
	}
	return posts, nil
}

var (
	_ notification.Source = (*Client)(nil)
	_ notification.Poster = (*Client)(nil)
)
