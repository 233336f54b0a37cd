// Package extractor describes the external service that turns a face image into an embedding.
package extractor

import (
	"context"
	"errors"

	"github.com/example/facematch/internal/matcher"
)

// ErrNoFace is returned when the extractor could not find a usable face in the image.
var ErrNoFace = errors.New("extractor: no face found")

// Client exposes the subset of functionality used by the recognition flow.
type Client interface {
	Extract(ctx context.Context, ownerID string, image []byte) (matcher.Embedding, error)
}
