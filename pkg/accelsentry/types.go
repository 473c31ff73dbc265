package accelsentry

import (
	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

// Burst is one POSTed window of three-axis accelerometer readings.
type Burst = domain.Burst

// Detection is the scored outcome of a burst in detect mode.
type Detection = domain.Detection

// FeatureVector holds one MAD value per axis.
type FeatureVector = domain.FeatureVector

// GaussianModel is the fitted mean and covariance used for scoring.
type GaussianModel = domain.GaussianModel

// BurstQueue is the bounded queue between HTTP handlers and workers.
type BurstQueue = ports.BurstQueue

// Archiver persists bursts in collect mode.
type Archiver = ports.Archiver

// ResultSink receives detections (database, live feed, callbacks).
type ResultSink = ports.ResultSink

// Observability emits logs and metrics about ingestion and scoring.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

var (
	ErrDecode             = domain.ErrDecode
	ErrFeatureExtraction  = domain.ErrFeatureExtraction
	ErrModel              = domain.ErrModel
	ErrModelLoad          = domain.ErrModelLoad
	ErrArchive            = domain.ErrArchive
	ErrNamespaceExhausted = domain.ErrNamespaceExhausted
)
