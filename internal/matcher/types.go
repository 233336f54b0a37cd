// Package matcher decides whether a face embedding belongs to a registered identity.
package matcher

// Embedding is a fixed-length face vector produced by an external extractor.
type Embedding []float32

// Identity is a registered face. An empty Embedding means no reference is available yet.
type Identity struct {
	Token     string
	Embedding Embedding
	Metadata  map[string]string
}

// Decision is the outcome of a match call.
type Decision string

const (
	DecisionMatched     Decision = "matched"
	DecisionNewIdentity Decision = "new_identity"
)

// Candidate pairs a registered identity with its similarity to the query.
type Candidate struct {
	Token      string  `json:"token"`
	Similarity float32 `json:"similarity"`
}

// Result is returned by Match. Similarity is zero for DecisionNewIdentity.
// Candidates holds every compared identity, best first.
type Result struct {
	Decision   Decision    `json:"decision"`
	Token      string      `json:"token"`
	Similarity float32     `json:"similarity"`
	Candidates []Candidate `json:"candidates"`
}

// IsNew reports whether the result minted a new identity token.
func (r *Result) IsNew() bool {
	return r != nil && r.Decision == DecisionNewIdentity
}
