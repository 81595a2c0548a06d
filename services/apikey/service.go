package apikey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fulfly-integrations/pkg/errutil"
	"fulfly-integrations/pkg/repository"
	"fulfly-integrations/pkg/task"
	"fulfly-integrations/services/client"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	asynq   task.Enqueuer
	clients *client.Service
	repo    repository.Repository[APIKey]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Asynq   task.Enqueuer
	Clients *client.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		asynq:   p.Asynq,
		clients: p.Clients,
		repo:    repository.ProvideStore[APIKey](p.DB),
	}
}

// Create mints a new API key for a client. The plaintext secret is part of
// the returned key and is never stored or retrievable again.
func (s *Service) Create(ctx context.Context, clientID string, scopes []string) (*CreatedKey, error) {
	owner, err := s.clients.Get(ctx, clientID)
	if err != nil {
		zap.L().Error("failed to load client for key creation", zap.Error(err))
		return nil, errutil.Internal("failed to create api key")
	}
	if owner == nil {
		return nil, errutil.NotFound("client not found")
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, errutil.Internal("failed to generate secret")
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := HashSecret(secret)
	if err != nil {
		return nil, errutil.Internal("failed to hash secret")
	}

	scopesJSON, err := json.Marshal(scopes)
	if err != nil {
		return nil, errutil.Internal("failed to encode scopes")
	}

	record := APIKey{
		ID:       s.node.Generate().String(),
		ClientID: owner.ID,
		KeyHash:  hash,
		Scopes:   datatypes.JSON(scopesJSON),
		IsActive: true,
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		zap.L().Error("failed to persist api key", zap.Error(err))
		return nil, errutil.Internal("failed to create api key")
	}

	return &CreatedKey{
		Key:    fmt.Sprintf("%s.%s", record.ID, secret),
		Record: record,
	}, nil
}

// Validate resolves a raw bearer key of the form `keyId.secret` to the caller
// identity. Any malformed, unknown, inactive or mismatching key resolves to
// (nil, nil); errors are reserved for infrastructure failures.
func (s *Service) Validate(ctx context.Context, rawKey string) (*Identity, error) {
	keyID, secret, ok := strings.Cut(rawKey, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, nil
	}

	record, err := s.repo.FindOne(ctx, &APIKey{ID: keyID})
	if err != nil {
		return nil, err
	}
	if record == nil || !record.IsActive {
		return nil, nil
	}

	owner, err := s.clients.Get(ctx, record.ClientID)
	if err != nil {
		return nil, err
	}
	if owner == nil || !owner.IsActive {
		return nil, nil
	}

	if !VerifySecret(record.KeyHash, secret) {
		return nil, nil
	}

	s.enqueueTouch(record.ID)

	return &Identity{
		KeyID:    record.ID,
		ClientID: record.ClientID,
		Scopes:   record.ScopeList(),
	}, nil
}

// enqueueTouch records key usage on a background queue. Best effort: a full
// queue or unreachable broker must never fail or delay the caller.
func (s *Service) enqueueTouch(keyID string) {
	payload, _ := json.Marshal(TouchPayload{KeyID: keyID, UsedAt: time.Now().UTC()})
	if _, err := s.asynq.Enqueue(asynq.NewTask(TaskTouch, payload, asynq.Queue("low"), asynq.MaxRetry(1))); err != nil {
		zap.L().Warn("failed to enqueue api key touch", zap.String("key_id", keyID), zap.Error(err))
	}
}

// HandleTouchTask stamps last_used_at for a validated key. Runs on the worker.
func (s *Service) HandleTouchTask(ctx context.Context, t *asynq.Task) error {
	var payload TouchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	if err := s.repo.Update(ctx, payload.KeyID, map[string]any{"last_used_at": payload.UsedAt}); err != nil {
		zap.L().Warn("failed to update api key last_used_at", zap.String("key_id", payload.KeyID), zap.Error(err))
	}
	return nil
}
