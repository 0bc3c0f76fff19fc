package out

import "context"

// JobPublisher enqueues parse jobs for the worker.
type JobPublisher interface {
	Publish(ctx context.Context, stream string, payload any) (string, error)
}

// SeenStore remembers mailbox message IDs that were already queued.
type SeenStore interface {
	// MarkIfNew records id and reports whether it was unseen before.
	MarkIfNew(ctx context.Context, source, id string) (bool, error)
	// Forget removes id so the next poll picks it up again.
	Forget(ctx context.Context, source, id string) error
}
