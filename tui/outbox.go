// ABOUTME: Routes writes to the store when online and to the offline queue otherwise
// ABOUTME: Reads always go straight to the store
package tui

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/harperreed/touchpoint/models"
	"github.com/harperreed/touchpoint/queue"
	"github.com/harperreed/touchpoint/remote"
)

type outbox struct {
	store remote.Store
	queue *queue.Queue
}

// Online reports the queue's view of connectivity; with no queue the store
// is assumed reachable.
func (o outbox) Online() bool {
	return o.queue == nil || o.queue.Online()
}

func (o outbox) List(ctx context.Context, q models.ListQuery) (models.Page, error) {
	return o.store.List(ctx, q)
}

func (o outbox) KPIs(ctx context.Context, f models.KPIFilter) (models.KPIs, error) {
	return o.store.KPIs(ctx, f)
}

func (o outbox) DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error) {
	if o.Online() {
		return o.store.DeleteMany(ctx, ids)
	}
	m, err := remote.DeleteManyMutation(ids)
	if err != nil {
		return 0, err
	}
	if _, err := o.queue.Enqueue(ctx, m); err != nil {
		return 0, fmt.Errorf("failed to queue delete: %w", err)
	}
	return len(ids), nil
}

// Delete removes one interaction, reporting whether it was queued.
func (o outbox) Delete(ctx context.Context, in models.Interaction) (bool, error) {
	if o.Online() {
		return false, o.store.Delete(ctx, in.ID)
	}
	if _, err := o.queue.Enqueue(ctx, remote.DeleteMutation(in.ID, in.Title)); err != nil {
		return false, fmt.Errorf("failed to queue delete: %w", err)
	}
	return true, nil
}
