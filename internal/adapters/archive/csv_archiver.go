package archive

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

// CSVArchiver owns the scan cursor for one directory. Archive calls are
// serialised so two bursts never race for the same slot.
type CSVArchiver struct {
	mu     sync.Mutex
	ns     Namespace
	cursor int
}

// NewCSVArchiver creates dir when missing and starts scanning at slot 0.
func NewCSVArchiver(ns Namespace) (*CSVArchiver, error) {
	ns = ns.withDefaults()
	if ns.Dir == "" {
		return nil, fmt.Errorf("archive dir is required")
	}
	if ns.Digits > maxDigits {
		return nil, fmt.Errorf("archive digits %d exceeds limit of %d", ns.Digits, maxDigits)
	}
	if err := os.MkdirAll(ns.Dir, 0o755); err != nil {
		return nil, err
	}
	return &CSVArchiver{ns: ns}, nil
}

func (a *CSVArchiver) Archive(ctx context.Context, b *domain.Burst) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot, err := a.ns.Archive(ctx, b, a.cursor)
	if err != nil {
		return -1, err
	}
	a.cursor = slot
	return slot, nil
}

func (a *CSVArchiver) Cursor() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// Namespace returns the resolved namespace (defaults applied).
func (a *CSVArchiver) Namespace() Namespace { return a.ns }

var _ ports.Archiver = (*CSVArchiver)(nil)
