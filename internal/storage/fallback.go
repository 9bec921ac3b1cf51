package storage

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Fallback writes to Primary and, when it is disabled or fails, to Secondary.
type Fallback struct {
	Primary   Store
	Secondary Store
}

// Put stores in via the first backend that succeeds.
func (f Fallback) Put(ctx context.Context, in PutInput) (Object, error) {
	if f.Primary != nil {
		obj, err := f.Primary.Put(ctx, in)
		if err == nil {
			return obj, nil
		}
		if !errors.Is(err, ErrDisabled) {
			log.Warn().Str("component", "storage").Err(err).Msg("primary upload failed; using local fallback")
		}
		if ctx.Err() != nil {
			return Object{}, ctx.Err()
		}
	}
	if f.Secondary == nil {
		return Object{}, ErrDisabled
	}
	return f.Secondary.Put(ctx, in)
}
