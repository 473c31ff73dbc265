package domain

import (
	"errors"
	"fmt"
)

// Error classes for a burst's trip through the service. Concrete errors wrap
// one of these so callers can branch with errors.Is.
var (
	// ErrDecode marks a malformed wire payload.
	ErrDecode = errors.New("decode error")
	// ErrFeatureExtraction marks an empty or degenerate burst.
	ErrFeatureExtraction = errors.New("feature extraction error")
	// ErrModel marks a model that cannot score (singular covariance, shape mismatch).
	ErrModel = errors.New("model error")
	// ErrModelLoad marks a missing or malformed persisted model.
	ErrModelLoad = errors.New("model load error")
	// ErrArchive marks a burst that could not be written to the archive.
	ErrArchive = errors.New("archive error")
	// ErrNamespaceExhausted is returned when every filename slot is taken.
	ErrNamespaceExhausted = fmt.Errorf("%w: namespace exhausted", ErrArchive)
)

// DropReason maps a per-burst error onto a short label for logs and metrics.
func DropReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrFeatureExtraction):
		return "features"
	case errors.Is(err, ErrModel):
		return "model"
	case errors.Is(err, ErrNamespaceExhausted):
		return "namespace_exhausted"
	case errors.Is(err, ErrArchive):
		return "archive"
	default:
		return "other"
	}
}
