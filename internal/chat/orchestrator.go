package chat

import (
	"context"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/g-ogaki/assistant-ui-langgraph/internal/store"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/types"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/upstream"
)

// Orchestrator drives one chat submission through its two states: a
// conversation with no thread yet gets one created upstream before the
// message goes out; an established conversation sends directly.
type Orchestrator struct {
	client  *upstream.Client
	threads *store.ThreadCache
	creates singleflight.Group
}

func NewOrchestrator(client *upstream.Client, threads *store.ThreadCache) *Orchestrator {
	return &Orchestrator{client: client, threads: threads}
}

// EnsureThread resolves the thread for a submission. When threadID is
// already known the call is a no-op. Otherwise one create-thread call runs
// upstream; concurrent sends for the same conversation wait on that same
// call instead of racing a second create. The cached thread listing is
// invalidated only after the create succeeds, never before.
func (o *Orchestrator) EnsureThread(ctx context.Context, guestID, conversationID, threadID string, query any) (string, bool, error) {
	if threadID != "" {
		return threadID, false, nil
	}
	if conversationID == "" {
		// No key to coalesce on; create directly.
		id, err := o.createThread(ctx, guestID, query)
		return id, err == nil, err
	}
	v, err, _ := o.creates.Do(guestID+"/"+conversationID, func() (any, error) {
		return o.createThread(ctx, guestID, query)
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), true, nil
}

func (o *Orchestrator) createThread(ctx context.Context, guestID string, query any) (string, error) {
	id, err := o.client.CreateThread(ctx, guestID, query)
	if err != nil {
		return "", err
	}
	o.threads.Invalidate(guestID)
	return id, nil
}

// SendMessage posts the translated query to the thread and returns the
// live streamed response for the handler to pipe back.
func (o *Orchestrator) SendMessage(ctx context.Context, guestID, threadID string, query any) (*http.Response, error) {
	return o.client.StreamMessage(ctx, guestID, threadID, query)
}

// Threads serves the guest's thread listing through the cache.
func (o *Orchestrator) Threads(ctx context.Context, guestID string) ([]upstream.ThreadInfo, error) {
	if threads, ok := o.threads.Get(guestID); ok {
		return threads, nil
	}
	threads, err := o.client.ListThreads(ctx, guestID)
	if err != nil {
		return nil, err
	}
	o.threads.Set(guestID, threads)
	return threads, nil
}

// DeleteThread removes the thread upstream and drops the cached listing.
func (o *Orchestrator) DeleteThread(ctx context.Context, guestID, threadID string) error {
	if err := o.client.DeleteThread(ctx, guestID, threadID); err != nil {
		return err
	}
	o.threads.Invalidate(guestID)
	return nil
}

// History returns a thread's stored messages converted to the UI shape.
func (o *Orchestrator) History(ctx context.Context, guestID, threadID string) ([]types.Message, error) {
	stored, err := o.client.GetMessages(ctx, guestID, threadID)
	if err != nil {
		return nil, err
	}
	return ConvertHistory(stored), nil
}
