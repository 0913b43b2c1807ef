package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dietdash/internal/cache"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/model"
	"dietdash/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// UserService reads stored accounts.
type UserService interface {
	GetProfile(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

// GetProfile returns the stored row for a session user id. Ids that are not
// row ids, such as the provider-subject fallback of an unprovisioned OAuth
// session, yield repository.ErrUserNotFound.
func (s *userService) GetProfile(ctx context.Context, id string) (*model.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.ErrUserNotFound
	}

	if data, _ := s.cache.Get(ctx, s.cacheKey(userID)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		return nil, apperrors.StoreUnavailable("find user by id", err)
	}

	// rows are never updated, so a cached copy cannot go stale
	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(userID), payload, userCacheTTL)
	}
	return user, nil
}
