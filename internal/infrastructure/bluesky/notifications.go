package bluesky

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/janhq/mention-agent/internal/domain/notification"
)

// maxPages bounds a single ListPending call.
const maxPages = 20

type actor struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

type postRecord struct {
	Type      string `json:"$type,omitempty"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type notificationView struct {
	URI       string     `json:"uri"`
	CID       string     `json:"cid"`
	Author    actor      `json:"author"`
	Reason    string     `json:"reason"`
	Record    postRecord `json:"record"`
	IsRead    bool       `json:"isRead"`
	IndexedAt time.Time  `json:"indexedAt"`
}

type listNotificationsOutput struct {
	Cursor        string             `json:"cursor"`
	Notifications []notificationView `json:"notifications"`
}

// ListPending pages through the notification feed, newest first, and
// returns every notification indexed at or after since. A zero since
// returns the first page only.
func (c *Client) ListPending(ctx context.Context, since time.Time) ([]notification.Notification, error) {
	var out []notification.Notification
	cursor := ""

	for page := 0; page < maxPages; page++ {
		var resp listNotificationsOutput
		err := c.call(ctx, http.MethodGet, "app.bsky.notification.listNotifications", func(r *resty.Request) {
			r.SetQueryParam("limit", strconv.Itoa(c.pageSize))
			if cursor != "" {
				r.SetQueryParam("cursor", cursor)
			}
		}, &resp)
		if err != nil {
			return nil, err
		}

		reachedSince := false
		for _, n := range resp.Notifications {
			if !since.IsZero() && n.IndexedAt.Before(since) {
				reachedSince = true
				continue
			}
			out = append(out, toNotification(n))
		}

		if since.IsZero() || reachedSince || resp.Cursor == "" || len(resp.Notifications) == 0 {
			return out, nil
		}
		cursor = resp.Cursor
	}

	c.log.Warn().Int("pages", maxPages).Msg("notification paging stopped at page limit")
	return out, nil
}

// MarkSeen marks notifications up to at as read.
func (c *Client) MarkSeen(ctx context.Context, at time.Time) error {
	return c.call(ctx, http.MethodPost, "app.bsky.notification.updateSeen", func(r *resty.Request) {
		r.SetBody(map[string]string{"seenAt": at.UTC().Format(time.RFC3339Nano)})
	}, nil)
}

func toNotification(v notificationView) notification.Notification {
	return notification.Notification{
		URI:       v.URI,
		CID:       v.CID,
		Author:    notification.Author{DID: v.Author.DID, Handle: v.Author.Handle},
		Reason:    v.Reason,
		Text:      v.Record.Text,
		IsRead:    v.IsRead,
		IndexedAt: v.IndexedAt,
	}
}

type postView struct {
	URI       string     `json:"uri"`
	CID       string     `json:"cid"`
	Author    actor      `json:"author"`
	Record    postRecord `json:"record"`
	IndexedAt time.Time  `json:"indexedAt"`
}

// threadView is a threadViewPost. Parents that are not found or blocked
// come back without a post and end the walk.
type threadView struct {
	Type    string        `json:"$type"`
	Post    *postView     `json:"post"`
	Parent  *threadView   `json:"parent"`
	Replies []*threadView `json:"replies"`
}

type getPostThreadOutput struct {
	Thread *threadView `json:"thread"`
}

// GetThread fetches a post with its direct replies and every ancestor.
func (c *Client) GetThread(ctx context.Context, uri string) (*notification.Thread, error) {
	var resp getPostThreadOutput
	err := c.call(ctx, http.MethodGet, "app.bsky.feed.getPostThread", func(r *resty.Request) {
		r.SetQueryParams(map[string]string{
			"uri":          uri,
			"depth":        "1",
			"parentHeight": "80",
		})
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Thread == nil || resp.Thread.Post == nil {
		return nil, fmt.Errorf("thread %s is not available", uri)
	}
	return toThread(resp.Thread, true), nil
}

func toThread(v *threadView, withReplies bool) *notification.Thread {
	t := &notification.Thread{Post: toPost(v.Post)}
	if v.Parent != nil && v.Parent.Post != nil {
		t.Parent = toThread(v.Parent, false)
	}
	if withReplies {
		for _, r := range v.Replies {
			if r != nil && r.Post != nil {
				t.Replies = append(t.Replies, &notification.Thread{Post: toPost(r.Post)})
			}
		}
	}
	return t
}

func toPost(p *postView) notification.Post {
	return notification.Post{
		Ref:    notification.PostRef{URI: p.URI, CID: p.CID},
		Author: notification.Author{DID: p.Author.DID, Handle: p.Author.Handle},
		Text:   p.Record.Text,
	}
}
