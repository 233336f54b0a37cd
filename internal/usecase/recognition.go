package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/facematch/internal/extractor"
	"github.com/example/facematch/internal/logging"
	"github.com/example/facematch/internal/matcher"
	"github.com/example/facematch/internal/repository"
)

const (
	processingTTL = time.Minute
	resultTTL     = 5 * time.Minute
	lastMatchTTL  = 24 * time.Hour
)

var (
	// ErrNotFound is returned when a result or identity does not exist for the caller.
	ErrNotFound = errors.New("usecase: not found")
	// ErrExtractorUnavailable wraps failures of the embedding extractor other than "no face".
	ErrExtractorUnavailable = errors.New("usecase: embedding extractor unavailable")
)

// IdentityRepository defines the persistence operations needed by the use case.
type IdentityRepository interface {
	ListIdentities(ctx context.Context, ownerID string) ([]*repository.Identity, error)
	CreateIdentity(ctx context.Context, identity *repository.Identity) error
	DeleteIdentity(ctx context.Context, ownerID, token string) error
	SaveMatchLog(ctx context.Context, log *repository.MatchLog) error
	FindMatchLog(ctx context.Context, requestID, ownerID string) (*repository.MatchLog, error)
	AggregateMetrics(ctx context.Context, ownerID string) (*repository.MetricsAggregation, error)
}

// Capture carries caller metadata stored with a newly registered identity.
type Capture struct {
	FilePath   string
	FaceID     string
	CapturedAt time.Time
}

// IdentityView is an identity without its embedding.
type IdentityView struct {
	Token      string    `json:"token"`
	FilePath   string    `json:"file_path"`
	FaceID     string    `json:"face_id,omitempty"`
	Dimensions int       `json:"dimensions"`
	CapturedAt time.Time `json:"captured_at"`
}

// Outcome is the result of one match call as stored and served to clients.
// Identity is the matched identity, or the one just registered.
type Outcome struct {
	RequestID  string              `json:"request_id"`
	OwnerID    string              `json:"owner_id"`
	Decision   matcher.Decision    `json:"decision"`
	Token      string              `json:"token"`
	Similarity float32             `json:"similarity"`
	Threshold  float32             `json:"threshold"`
	Candidates []matcher.Candidate `json:"candidates"`
	Identity   *IdentityView       `json:"identity,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// RecognitionUseCase ties the matcher to the identity store, the cache and the extractor.
type RecognitionUseCase struct {
	repo      IdentityRepository
	cache     Cache
	extractor extractor.Client
	matcher   *matcher.Matcher
	logger    *zap.Logger
	retry     logging.RetryPolicy
	newID     func() string
	now       func() time.Time
}

// NewRecognitionUseCase constructs a new use case instance.
func NewRecognitionUseCase(repo IdentityRepository, cache Cache, client extractor.Client, m *matcher.Matcher, logger *zap.Logger) *RecognitionUseCase {
	return &RecognitionUseCase{
		repo:      repo,
		cache:     cache,
		extractor: client,
		matcher:   m,
		logger:    logger.Named("recognition_usecase"),
		retry:     logging.DefaultRetryPolicy,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Recognize extracts an embedding from image and matches it.
func (uc *RecognitionUseCase) Recognize(ctx context.Context, ownerID string, image []byte, capture Capture) (*Outcome, error) {
	embedding, err := uc.extractor.Extract(ctx, ownerID, image)
	if err != nil {
		if errors.Is(err, extractor.ErrNoFace) {
			return nil, fmt.Errorf("%w: %w", matcher.ErrEmptyEmbedding, err)
		}
		if errors.Is(err, matcher.ErrNonFiniteEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrExtractorUnavailable, err)
	}
	return uc.Match(ctx, ownerID, embedding, capture)
}

// Match compares query with a snapshot of the owner's identities. When nobody is
// accepted, the query is registered under the freshly minted token.
func (uc *RecognitionUseCase) Match(ctx context.Context, ownerID string, query matcher.Embedding, capture Capture) (*Outcome, error) {
	if err := matcher.ValidateQuery(query); err != nil {
		return nil, err
	}

	requestID := uc.newID()
	opLogger := logging.WithOperation(uc.logger, "usecase.match", requestID)
	start := uc.now()

	if err := uc.withRedisRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, resultKey(requestID), "processing", processingTTL)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	stored, err := uc.repo.ListIdentities(ctx, ownerID)
	if err != nil {
		opLogger.Error("failed to load identities", zap.Error(err))
		return nil, err
	}

	snapshot := make([]matcher.Identity, len(stored))
	byToken := make(map[string]*repository.Identity, len(stored))
	for i, identity := range stored {
		snapshot[i] = identity.MatcherIdentity()
		byToken[identity.Token] = identity
	}

	result, err := uc.matcher.Match(query, snapshot)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.match", requestID, err)
		opLogger.Error("match failed", zap.Error(wrapped), zap.Int("identities", len(snapshot)))
		return nil, wrapped
	}

	var identity *repository.Identity
	if result.IsNew() {
		capturedAt := capture.CapturedAt
		if capturedAt.IsZero() {
			capturedAt = start
		}
		identity = &repository.Identity{
			OwnerID:    ownerID,
			Token:      result.Token,
			FilePath:   capture.FilePath,
			FaceID:     capture.FaceID,
			CapturedAt: capturedAt,
			CreatedAt:  start,
		}
		identity.SetEmbedding(query)
		if err := uc.repo.CreateIdentity(ctx, identity); err != nil {
			opLogger.Error("failed to register identity", zap.Error(err))
			return nil, err
		}
		opLogger.Info("new identity registered", zap.String("token", result.Token), zap.Int("candidates", len(result.Candidates)))
	} else {
		identity = byToken[result.Token]
		opLogger.Info("identity matched", zap.String("token", result.Token), zap.Float32("similarity", result.Similarity))
	}

	latency := uc.now().Sub(start)
	log := &repository.MatchLog{
		RequestID:      requestID,
		OwnerID:        ownerID,
		Decision:       string(result.Decision),
		Token:          result.Token,
		Similarity:     result.Similarity,
		CandidateCount: len(result.Candidates),
		LatencyMs:      latency.Milliseconds(),
		CreatedAt:      start,
	}
	if err := uc.repo.SaveMatchLog(ctx, log); err != nil {
		opLogger.Error("failed to persist match log", zap.Error(err))
		return nil, err
	}

	outcome := &Outcome{
		RequestID:  requestID,
		OwnerID:    ownerID,
		Decision:   result.Decision,
		Token:      result.Token,
		Similarity: result.Similarity,
		Threshold:  uc.matcher.Threshold(),
		Candidates: result.Candidates,
		Identity:   viewOf(identity),
		CreatedAt:  start,
	}

	serialized, err := json.Marshal(outcome)
	if err != nil {
		opLogger.Error("failed to serialize match outcome", zap.Error(err))
		return nil, err
	}

	if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, resultKey(requestID), string(serialized), resultTTL)
	}); err != nil {
		opLogger.Error("failed to cache match outcome", zap.Error(err))
		return nil, err
	}

	if err := uc.withRedisRetry(ctx, requestID, "cache.set.last_match", func() error {
		return uc.cache.Set(ctx, lastMatchKey(ownerID), string(serialized), lastMatchTTL)
	}); err != nil {
		// the outcome is already durable; only the comparison slot is stale
		opLogger.Warn("failed to update last match", zap.Error(err))
	}

	return outcome, nil
}

// GetResult retrieves a cached outcome, falling back to the persisted match log.
// Candidates are only available while the outcome is cached.
func (uc *RecognitionUseCase) GetResult(ctx context.Context, ownerID, requestID string) (*Outcome, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", requestID)

	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", resultKey(requestID)); err == nil {
		var outcome Outcome
		if err := json.Unmarshal([]byte(cached), &outcome); err != nil {
			// "processing" or a corrupt entry
			opLogger.Debug("cached result not decodable", zap.Error(err))
		} else if outcome.OwnerID == ownerID {
			return &outcome, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	log, err := uc.repo.FindMatchLog(ctx, requestID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &Outcome{
		RequestID:  log.RequestID,
		OwnerID:    log.OwnerID,
		Decision:   matcher.Decision(log.Decision),
		Token:      log.Token,
		Similarity: log.Similarity,
		Threshold:  uc.matcher.Threshold(),
		CreatedAt:  log.CreatedAt,
	}, nil
}

// LastMatch returns the owner's most recent outcome, for side-by-side comparison.
func (uc *RecognitionUseCase) LastMatch(ctx context.Context, ownerID string) (*Outcome, error) {
	cached, err := uc.withRedisGet(ctx, "", "cache.get.last_match", lastMatchKey(ownerID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var outcome Outcome
	if err := json.Unmarshal([]byte(cached), &outcome); err != nil {
		return nil, logging.NewOperationError("usecase.last_match", "", err)
	}
	return &outcome, nil
}

// ListIdentities returns the owner's identities in registration order.
func (uc *RecognitionUseCase) ListIdentities(ctx context.Context, ownerID string) ([]*IdentityView, error) {
	stored, err := uc.repo.ListIdentities(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]*IdentityView, 0, len(stored))
	for _, identity := range stored {
		views = append(views, viewOf(identity))
	}
	return views, nil
}

// DeleteIdentity removes an identity and clears the owner's comparison slot.
func (uc *RecognitionUseCase) DeleteIdentity(ctx context.Context, ownerID, token string) error {
	if err := uc.repo.DeleteIdentity(ctx, ownerID, token); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := uc.withRedisRetry(ctx, "", "cache.del.last_match", func() error {
		return uc.cache.Del(ctx, lastMatchKey(ownerID))
	}); err != nil {
		logging.WithOperation(uc.logger, "usecase.delete_identity", "").Warn("failed to clear last match", zap.Error(err))
	}
	return nil
}

func viewOf(identity *repository.Identity) *IdentityView {
	if identity == nil {
		return nil
	}
	return &IdentityView{
		Token:      identity.Token,
		FilePath:   identity.FilePath,
		FaceID:     identity.FaceID,
		Dimensions: identity.Dimensions(),
		CapturedAt: identity.CapturedAt,
	}
}

func (uc *RecognitionUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	return logging.Retry(ctx, uc.logger, uc.retry, operation, requestID, fn)
}

func (uc *RecognitionUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
