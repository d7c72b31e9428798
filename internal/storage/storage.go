package storage

import (
	"context"

	"lazyview/internal/model"
)

// Storage defines a sink for call records.
type Storage interface {
	PutCallBatch(ctx context.Context, records []model.CallRecord) error
}

// Multi writes every batch to each sink in order and stops at the first
// failure.
type Multi []Storage

func (m Multi) PutCallBatch(ctx context.Context, records []model.CallRecord) error {
	for _, s := range m {
		if err := s.PutCallBatch(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
