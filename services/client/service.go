package client

import (
	"context"
	"errors"

	"fulfly-integrations/pkg/errutil"
	"fulfly-integrations/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[Client]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[Client](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, name string) (*Client, error) {
	if name == "" {
		return nil, errutil.ValidationFailed("client name is required")
	}

	record := &Client{
		ID:       s.node.Generate().String(),
		Name:     name,
		IsActive: true,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("client already exists")
		}
		zap.L().Error("failed to create integration client", zap.Error(err))
		return nil, errutil.Internal("failed to create client")
	}

	return record, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Client, error) {
	return s.repo.FindOne(ctx, &Client{ID: id})
}

// FindInternal looks up the canonical internal client without creating it.
// Returns (nil, nil) when it does not exist yet.
func (s *Service) FindInternal(ctx context.Context) (*Client, error) {
	return s.repo.FindOne(ctx, &Client{Name: InternalName})
}

// EnsureInternal returns the canonical internal client, creating it inside
// the given transaction on first use. The unique name index makes concurrent
// first uses converge on a single row.
func (s *Service) EnsureInternal(ctx context.Context, tx *gorm.DB) (*Client, error) {
	repo := s.repo.WithTrx(tx)

	existing, err := repo.FindOne(ctx, &Client{Name: InternalName})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record := &Client{
		ID:       s.node.Generate().String(),
		Name:     InternalName,
		IsActive: true,
	}
	if err := repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}
