package ports

import "github.com/ghalamif/accelsentry/internal/domain"

type BurstQueue interface {
	Enqueue(b *domain.Burst) bool
	DequeueBatch(max int) []*domain.Burst
	Len() int
}
