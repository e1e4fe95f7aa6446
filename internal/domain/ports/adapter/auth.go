package adapter

import "context"

// AdminDirectory answers capability questions about actors.
type AdminDirectory interface {
	IsAdmin(ctx context.Context, actorID string) (bool, error)
}
