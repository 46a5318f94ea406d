package impersonate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/onsell/backoffice/internal/acting"
	"github.com/onsell/backoffice/internal/store"
	"github.com/onsell/backoffice/params"
)

// RoleSnapshot holds an actor's complete role set from before an
// impersonation started. It lives outside the session so that roles can be
// restored even when the session is lost.
type RoleSnapshot struct {
	ActorID    uint              `json:"actor_id"`
	Roles      []string          `json:"roles"`
	TargetType acting.TenantType `json:"target_type"`
	TargetID   uint              `json:"target_id"`
	CreatedAt  time.Time         `json:"created_at"`
}

type SnapshotStore struct {
	store store.Store[RoleSnapshot]
}

func NewSnapshotStore(storage store.Storage) *SnapshotStore {
	return &SnapshotStore{store: store.New[RoleSnapshot](storage, params.RoleSnapshotKeyPrefix)}
}

func snapshotKey(actorID uint) string {
	return strconv.FormatUint(uint64(actorID), 10)
}

// Get returns the pending snapshot of actorID, or nil when there is none.
func (s *SnapshotStore) Get(ctx context.Context, actorID uint) (*RoleSnapshot, error) {
	snap, err := s.store.Get(ctx, snapshotKey(actorID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snap *RoleSnapshot) error {
	return s.store.Set(ctx, snapshotKey(snap.ActorID), *snap, params.RoleSnapshotExpiration)
}

func (s *SnapshotStore) Delete(ctx context.Context, actorID uint) error {
	return s.store.Delete(ctx, snapshotKey(actorID))
}
