package matcher

import (
	"sort"

	"github.com/google/uuid"
)

// DefaultThreshold is the minimum cosine similarity, exclusive, for a match.
const DefaultThreshold float32 = 0.6

// TokenGenerator mints identity tokens for faces that match nobody.
type TokenGenerator func() string

// Matcher compares a query embedding against a snapshot of registered identities.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	threshold float32
	newToken  TokenGenerator
}

// Option customises a Matcher.
type Option func(*Matcher)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float32) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithTokenGenerator replaces the random UUID token source.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(m *Matcher) {
		if gen != nil {
			m.newToken = gen
		}
	}
}

// New constructs a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		threshold: DefaultThreshold,
		newToken:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the acceptance threshold in use.
func (m *Matcher) Threshold() float32 {
	return m.threshold
}

// Match scores query against every registered identity with a non-empty embedding.
// An identity is accepted only when its similarity is strictly above the threshold and
// strictly above every earlier candidate, so the first of several equal scores wins.
// A registered embedding whose length differs from the query, or that holds NaN or
// an infinity, fails the whole call.
func (m *Matcher) Match(query Embedding, registered []Identity) (*Result, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(registered))
	best := -1
	bestSim := float32(-1)

	for _, identity := range registered {
		if len(identity.Embedding) == 0 {
			continue
		}
		if len(identity.Embedding) != len(query) {
			return nil, &DimensionMismatchError{Token: identity.Token, Want: len(query), Got: len(identity.Embedding)}
		}
		if i := nonFiniteIndex(identity.Embedding); i >= 0 {
			return nil, &CorruptEmbeddingError{Token: identity.Token, Index: i}
		}

		sim := CosineSimilarity(query, identity.Embedding)
		candidates = append(candidates, Candidate{Token: identity.Token, Similarity: sim})

		if sim > m.threshold && sim > bestSim {
			bestSim = sim
			best = len(candidates) - 1
		}
	}

	result := &Result{Candidates: candidates}
	if best >= 0 {
		result.Decision = DecisionMatched
		result.Token = candidates[best].Token
		result.Similarity = bestSim
	} else {
		result.Decision = DecisionNewIdentity
		result.Token = m.newToken()
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Similarity > result.Candidates[j].Similarity
	})
	return result, nil
}
