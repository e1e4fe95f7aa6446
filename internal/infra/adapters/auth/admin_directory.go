package auth

import (
	"context"
	"strings"

	"payment-lifecycle/internal/domain/ports/adapter"
)

var _ adapter.AdminDirectory = (*StaticAdminDirectory)(nil)

// StaticAdminDirectory grants the admin capability to a fixed set of actor ids
// taken from configuration.
type StaticAdminDirectory struct {
	ids map[string]struct{}
}

func NewStaticAdminDirectory(ids []string) *StaticAdminDirectory {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			m[id] = struct{}{}
		}
	}
	return &StaticAdminDirectory{ids: m}
}

func (d *StaticAdminDirectory) IsAdmin(_ context.Context, actorID string) (bool, error) {
	_, ok := d.ids[actorID]
	return ok, nil
}
