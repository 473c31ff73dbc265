package ports

import "github.com/ghalamif/accelsentry/internal/domain"

// ResultSink receives scored bursts (database, live feed, callbacks).
type ResultSink interface {
	WriteBatch(dets []domain.Detection) error
	Name() string
}
