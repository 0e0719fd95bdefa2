package repository

import (
	"context"
	"fmt"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"gorm.io/gorm"
)

// OwnerRepositoryFactory binds an owner repository to a db handle (or transaction)
type OwnerRepositoryFactory func(db *gorm.DB) OwnerRepository

// Store bundles the repositories touched by a versioning operation.
// Atomic runs fn against a Store bound to a single transaction.
type Store interface {
	Versions() VersionRepository
	Transitions() TransitionRepository
	Owners(t domain.OwnerType) (OwnerRepository, error)
	Atomic(ctx context.Context, fn func(tx Store) error) error
	WithContext(ctx context.Context) Store
}

type gormStore struct {
	db     *gorm.DB
	owners map[domain.OwnerType]OwnerRepositoryFactory
}

// NewStore creates a gorm-backed Store with the post owner registered
func NewStore(db *gorm.DB) Store {
	return NewStoreWithOwners(db, map[domain.OwnerType]OwnerRepositoryFactory{
		domain.OwnerTypePost: NewPostOwnerRepository,
	})
}

// NewStoreWithOwners creates a Store with a custom owner type registry
func NewStoreWithOwners(db *gorm.DB, owners map[domain.OwnerType]OwnerRepositoryFactory) Store {
	return &gormStore{db: db, owners: owners}
}

func (s *gormStore) Versions() VersionRepository {
	return NewVersionRepository(s.db)
}

func (s *gormStore) Transitions() TransitionRepository {
	return NewTransitionRepository(s.db)
}

func (s *gormStore) Owners(t domain.OwnerType) (OwnerRepository, error) {
	factory, ok := s.owners[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown owner type %q", common.ErrOwnerNotFound, t)
	}
	return factory(s.db), nil
}

func (s *gormStore) WithContext(ctx context.Context) Store {
	return &gormStore{db: s.db.WithContext(ctx), owners: s.owners}
}

func (s *gormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, owners: s.owners})
	})
}
