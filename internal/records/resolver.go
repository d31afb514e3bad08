package records

import (
	"context"
	"errors"
	"log/slog"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
)

// RecordStore reads artifact records by composite key.
type RecordStore interface {
	// Get returns ErrRecordNotFound when no record exists for key.
	Get(ctx context.Context, key RecordKey) (*Record, error)
}

// Resolver maps a verified identity and a caller reference to a ready artifact record.
type Resolver struct {
	store RecordStore
}

func NewResolver(store RecordStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the record for (identity, upload reference of callerRef).
// identity must be the verified email claim. Every failure is a *ResolveError.
func (r *Resolver) Resolve(ctx context.Context, identity string, callerRef string) (*Record, error) {
	uploadRef, err := ParseReference(callerRef)
	if err != nil {
		return nil, err
	}

	key := RecordKey{Identity: identity, UploadRef: uploadRef}

	reqLogger := logger.ContextRequestLogger(ctx)
	reqLogger.Debug("resolving record",
		slog.String("record_id", key.ID()),
		slog.String("caller_ref", callerRef))

	record, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, WrapResolveError(err, ErrCodeNotFound, "record "+key.ID()+" not found")
		}
		return nil, WrapResolveError(err, ErrCodeStoreUnavailable, "record store lookup failed")
	}
	if record == nil {
		return nil, NewResolveError(ErrCodeNotFound, "record "+key.ID()+" not found")
	}

	if !record.Ready() {
		return nil, NewNotReadyError(key, record.Status)
	}
	return record, nil
}
