package ports

import (
	"context"

	"github.com/ghalamif/accelsentry/internal/domain"
)

// Processor handles one decoded burst for the active operating mode.
type Processor interface {
	Process(ctx context.Context, b *domain.Burst) error
	Mode() string
}

// Archiver persists bursts under a collision-free name and owns the scan cursor.
type Archiver interface {
	Archive(ctx context.Context, b *domain.Burst) (slot int, err error)
	Cursor() int
}
