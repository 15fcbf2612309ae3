package repository

import (
	"context"
	"time"

	"github.com/raisedeck/accesslink/internal/domain/access"
)

// AccessStore is the read-modify-write surface for access records. Get never
// reports not-found: absence is a valid state returned as the defaults record.
type AccessStore interface {
	Get(ctx context.Context, uid string) (access.AccessRecord, error)
	Upsert(ctx context.Context, record access.AccessRecord) (access.AccessRecord, error)
}

// AccessRepository adds transaction scoping. The store passed to fn is only
// valid inside fn; InTx commits on nil return and rolls back on every other
// exit path.
type AccessRepository interface {
	AccessStore
	InTx(ctx context.Context, fn func(store AccessStore) error) error
}

// StateNonceStore observes single-use of OAuth state nonces. Consume reports
// whether this is the first sighting. Best-effort: callers log failures and
// replays but never abort on them — the state token is unauthenticated by
// compatibility contract, so replay rejection would change flow behavior.
type StateNonceStore interface {
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}
