package cart

import "context"

// Repository persists serialized cart snapshots under a string key.
// Load returns domain.ErrNotFound when nothing is stored under key.
type Repository interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}
