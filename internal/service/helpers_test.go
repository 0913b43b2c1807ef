package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"dietdash/internal/auth"
	"dietdash/internal/config"
	"dietdash/internal/db"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/model"
	"dietdash/internal/repository"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Insert(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) InsertIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

// MockAccountStore is a mock implementation of AccountStore.
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) InsertIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

type memoryQueue struct {
	mu    sync.Mutex
	items []model.ProvisioningRetry
}

func (q *memoryQueue) Enqueue(_ context.Context, retry model.ProvisioningRetry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, retry)
	return nil
}

func (q *memoryQueue) Dequeue(_ context.Context) (*model.ProvisioningRetry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	retry := q.items[0]
	q.items = q.items[1:]
	return &retry, nil
}

func (q *memoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type memoryStateStore struct {
	mu     sync.Mutex
	n      int
	last   string
	states map[string]auth.OAuthState
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: map[string]auth.OAuthState{}}
}

func (s *memoryStateStore) Save(_ context.Context, state auth.OAuthState) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	id := fmt.Sprintf("state-%d", s.n)
	s.states[id] = state
	s.last = id
	return id, nil
}

func (s *memoryStateStore) Consume(_ context.Context, id string) (*auth.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	if !ok {
		return nil, apperrors.ErrOAuthState
	}
	delete(s.states, id)
	return &state, nil
}

type fakeOAuthClient struct {
	assertion   auth.Assertion
	exchangeErr error
}

func (c *fakeOAuthClient) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (c *fakeOAuthClient) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if c.exchangeErr != nil {
		return nil, c.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access-" + code}, nil
}

func (c *fakeOAuthClient) FetchAssertion(_ context.Context, _ *oauth2.Token) (*auth.Assertion, error) {
	a := c.assertion
	return &a, nil
}

type testEnv struct {
	db          *gorm.DB
	users       repository.UserRepository
	sessions    *auth.SessionManager
	states      *memoryStateStore
	client      *fakeOAuthClient
	queue       *memoryQueue
	provisioner *Provisioner
	service     AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gormDB, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.User{}))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	logger := newTestLogger()
	users := repository.NewUserRepository(gormDB)
	queue := &memoryQueue{}
	provisioner := NewProvisioner(users, queue, config.PolicyProceed, time.Second, logger)
	sessions := auth.NewSessionManager(testSecret, time.Hour, time.Hour)
	states := newMemoryStateStore()
	client := &fakeOAuthClient{
		assertion: auth.Assertion{Provider: auth.ProviderGitHub, Subject: "42", Email: "b@y.com", Name: "Bee"},
	}

	providers := auth.NewProviderSet(
		auth.NewCredentialsProvider(users, hasher, logger),
		auth.NewOAuthProvider(auth.ProviderGitHub, provisioner.EnsureAccount),
	)

	return &testEnv{
		db:          gormDB,
		users:       users,
		sessions:    sessions,
		states:      states,
		client:      client,
		queue:       queue,
		provisioner: provisioner,
		service: NewAuthService(users, hasher, providers, sessions, states,
			map[string]auth.OAuthClient{auth.ProviderGitHub: client}, logger),
	}
}

func (e *testEnv) countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.User{}).Count(&n).Error)
	return n
}
