package credential

import "context"

// Repo persists credentials and the ID of the process-wide default credential.
// Get and DefaultID return errors.ErrNotFound when nothing is stored.
type Repo interface {
	Upsert(ctx context.Context, c *Credential) error
	Get(ctx context.Context, id string) (*Credential, error)
	Delete(ctx context.Context, id string) error
	DefaultID(ctx context.Context) (string, error)
	SetDefaultID(ctx context.Context, id string) error
}
