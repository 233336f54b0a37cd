package repository

import (
	"strconv"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/example/facematch/internal/matcher"
)

// Identity is a registered face. Rows are appended once and never updated.
type Identity struct {
	ID         uint             `gorm:"primaryKey"`
	OwnerID    string           `gorm:"column:owner_id;size:64;uniqueIndex:idx_identities_owner_token,priority:1"`
	Token      string           `gorm:"column:token;size:64;uniqueIndex:idx_identities_owner_token,priority:2"`
	FilePath   string           `gorm:"column:file_path;type:text"`
	FaceID     string           `gorm:"column:face_id;size:64"`
	Embedding  *pgvector.Vector `gorm:"column:embedding;type:vector"`
	CapturedAt time.Time        `gorm:"column:captured_at"`
	CreatedAt  time.Time        `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (Identity) TableName() string {
	return "identities"
}

// SetEmbedding stores e, or NULL when e is empty.
func (i *Identity) SetEmbedding(e matcher.Embedding) {
	if len(e) == 0 {
		i.Embedding = nil
		return
	}
	v := pgvector.NewVector(append([]float32(nil), e...))
	i.Embedding = &v
}

// Dimensions returns the embedding length, 0 when none is stored.
func (i *Identity) Dimensions() int {
	if i.Embedding == nil {
		return 0
	}
	return len(i.Embedding.Slice())
}

// MatcherIdentity converts the row into the matcher's view of it.
func (i *Identity) MatcherIdentity() matcher.Identity {
	var embedding matcher.Embedding
	if i.Embedding != nil {
		embedding = i.Embedding.Slice()
	}
	return matcher.Identity{
		Token:     i.Token,
		Embedding: embedding,
		Metadata: map[string]string{
			"file_path":   i.FilePath,
			"face_id":     i.FaceID,
			"captured_at": strconv.FormatInt(i.CapturedAt.UnixMilli(), 10),
		},
	}
}

// MatchLog records the outcome of one match call.
type MatchLog struct {
	ID             uint      `gorm:"primaryKey"`
	RequestID      string    `gorm:"column:request_id;uniqueIndex;size:64"`
	OwnerID        string    `gorm:"column:owner_id;index;size:64"`
	Decision       string    `gorm:"column:decision;size:16"`
	Token          string    `gorm:"column:token;size:64"`
	Similarity     float32   `gorm:"column:similarity"`
	CandidateCount int       `gorm:"column:candidate_count"`
	LatencyMs      int64     `gorm:"column:latency_ms"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (MatchLog) TableName() string {
	return "match_logs"
}

// MetricsAggregation is the raw aggregate over an owner's match logs.
type MetricsAggregation struct {
	TotalCount        int64
	MatchedCount      int64
	AverageSimilarity float64
	AverageLatencyMs  float64
}
