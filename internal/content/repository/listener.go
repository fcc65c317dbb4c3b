package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/GoSim-25-26J-441/project-tracker/internal/content"
)

// DeleteChannel is the NOTIFY channel fed by the posts delete trigger.
const DeleteChannel = "content_post_deleted"

type deletePayload struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// NewDeleteListener opens a dedicated connection listening on DeleteChannel.
// onEvent receives connection state changes and may be nil.
func NewDeleteListener(dsn string, onEvent pq.EventCallbackType) (*pq.Listener, error) {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, onEvent)
	if err := l.Listen(DeleteChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen %s: %w", DeleteChannel, err)
	}
	return l, nil
}

// Relay forwards trigger notifications to OnDelete subscribers so deletions
// made outside this process, by scripts or other instances, reach them too.
// Deletes issued through this repository are announced twice, once directly
// and once by the trigger. Relay returns when ctx is done or notifications
// is closed. A nil notification marks a reconnect and is skipped; malformed
// payloads are reported through skip when it is non-nil.
func (r *PostRepository) Relay(ctx context.Context, notifications <-chan *pq.Notification, skip func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n == nil || n.Channel != DeleteChannel {
				continue
			}

			var p deletePayload
			if err := json.Unmarshal([]byte(n.Extra), &p); err != nil || p.ID <= 0 {
				if skip != nil {
					skip(fmt.Errorf("bad %s payload %q", DeleteChannel, n.Extra))
				}
				continue
			}
			r.notifier.Notify(ctx, content.DeleteEvent{ID: p.ID, Type: p.Type})
		}
	}
}
