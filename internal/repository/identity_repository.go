package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/facematch/internal/logging"
	"github.com/example/facematch/internal/matcher"
)

// IdentityRepository persists identities and match logs in PostgreSQL.
type IdentityRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	retry  logging.RetryPolicy
}

// NewIdentityRepository creates a new repository instance.
func NewIdentityRepository(db *gorm.DB, logger *zap.Logger) *IdentityRepository {
	return &IdentityRepository{
		db:     db,
		logger: logger.Named("identity_repository"),
		retry:  logging.DefaultRetryPolicy,
	}
}

// AutoMigrate enables pgvector and ensures the schema is available.
func (r *IdentityRepository) AutoMigrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return logging.NewOperationError("repository.create_extension", "", err)
	}
	return logging.NewOperationError("repository.auto_migrate", "", db.AutoMigrate(&Identity{}, &MatchLog{}))
}

// ListIdentities returns a snapshot of the owner's identities in registration order.
func (r *IdentityRepository) ListIdentities(ctx context.Context, ownerID string) ([]*Identity, error) {
	var identities []*Identity
	err := r.executeWithRetry(ctx, "repository.list_identities", "", func() error {
		identities = identities[:0]
		return r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id ASC").Find(&identities).Error
	})
	if err != nil {
		return nil, err
	}
	return identities, nil
}

// CreateIdentity appends a new identity. Inserts are attempted once: a retry after
// a lost acknowledgement would register the same face twice.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *Identity) error {
	return r.executeOnce("repository.create_identity", identity.Token, func() error {
		return r.db.WithContext(ctx).Create(identity).Error
	})
}

// DeleteIdentity removes the owner's identity with the given token.
// It returns gorm.ErrRecordNotFound when there is nothing to delete.
func (r *IdentityRepository) DeleteIdentity(ctx context.Context, ownerID, token string) error {
	return r.executeWithRetry(ctx, "repository.delete_identity", token, func() error {
		res := r.db.WithContext(ctx).Where("owner_id = ? AND token = ?", ownerID, token).Delete(&Identity{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SaveMatchLog persists a match log entry.
func (r *IdentityRepository) SaveMatchLog(ctx context.Context, log *MatchLog) error {
	return r.executeOnce("repository.save_match_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindMatchLog retrieves a match log by request id and owner.
func (r *IdentityRepository) FindMatchLog(ctx context.Context, requestID, ownerID string) (*MatchLog, error) {
	var log MatchLog
	err := r.executeWithRetry(ctx, "repository.find_match_log", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ? AND owner_id = ?", requestID, ownerID).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics summarises the owner's match logs.
func (r *IdentityRepository) AggregateMetrics(ctx context.Context, ownerID string) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&MatchLog{}).
			Select(`COUNT(*) AS total_count,
				COALESCE(SUM(CASE WHEN decision = ? THEN 1 ELSE 0 END), 0) AS matched_count,
				COALESCE(AVG(CASE WHEN decision = ? THEN similarity END), 0) AS average_similarity,
				COALESCE(AVG(latency_ms), 0) AS average_latency_ms`,
				string(matcher.DecisionMatched), string(matcher.DecisionMatched)).
			Where("owner_id = ?", ownerID).
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *IdentityRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return logging.Retry(ctx, r.logger, r.retry, operation, requestID, fn)
}

func (r *IdentityRepository) executeOnce(operation, requestID string, fn func() error) error {
	err := logging.NewOperationError(operation, requestID, fn())
	if err != nil {
		logging.WithOperation(r.logger, operation, requestID).Error("operation failed", zap.Error(err))
	}
	return err
}
