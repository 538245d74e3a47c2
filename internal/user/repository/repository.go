package repository

import (
	"context"

	"passkeyd/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByHandle(ctx context.Context, handle string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
