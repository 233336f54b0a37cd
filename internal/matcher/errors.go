package matcher

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyEmbedding is returned when the query embedding has no components.
	ErrEmptyEmbedding = errors.New("matcher: empty query embedding")
	// ErrDimensionMismatch is returned when a registered embedding differs in length from the query.
	ErrDimensionMismatch = errors.New("matcher: embedding dimension mismatch")
	// ErrNonFiniteEmbedding is returned when the query embedding contains NaN or an infinity.
	ErrNonFiniteEmbedding = errors.New("matcher: non-finite query embedding")
	// ErrCorruptEmbedding is returned when a registered embedding contains NaN or an infinity.
	ErrCorruptEmbedding = errors.New("matcher: non-finite registered embedding")
)

// DimensionMismatchError identifies the registered identity whose embedding has the wrong length.
type DimensionMismatchError struct {
	Token string
	Want  int
	Got   int
}

// Error implements the error interface.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%v: identity %s has %d components, query has %d", ErrDimensionMismatch, e.Token, e.Got, e.Want)
}

// Is makes errors.Is(err, ErrDimensionMismatch) hold.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CorruptEmbeddingError identifies the registered identity whose embedding is not finite.
type CorruptEmbeddingError struct {
	Token string
	Index int
}

// Error implements the error interface.
func (e *CorruptEmbeddingError) Error() string {
	return fmt.Sprintf("%v: identity %s, component %d", ErrCorruptEmbedding, e.Token, e.Index)
}

// Is makes errors.Is(err, ErrCorruptEmbedding) hold.
func (e *CorruptEmbeddingError) Is(target error) bool {
	return target == ErrCorruptEmbedding
}
