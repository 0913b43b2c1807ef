package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dietdash/internal/auth"
	"dietdash/internal/config"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/model"
)

const (
	maxProvisioningAttempts = 5
	provisioningBatchSize   = 10
)

// AccountStore is the slice of the credential store provisioning needs.
type AccountStore interface {
	InsertIfAbsent(ctx context.Context, user *model.User) (bool, error)
}

// Provisioner materializes a user row for first-time OAuth identities.
type Provisioner struct {
	users    AccountStore
	queue    RetryQueue
	policy   string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewProvisioner creates a provisioner. policy is config.PolicyProceed or
// config.PolicyFail.
func NewProvisioner(users AccountStore, queue RetryQueue, policy string, interval time.Duration, logger *slog.Logger) *Provisioner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Provisioner{
		users:    users,
		queue:    queue,
		policy:   policy,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// EnsureAccount is the OAuth sign-in callback. It inserts the user if the
// email is new and points identity at the stored row. It returns false only
// when the store failed and the policy is config.PolicyFail.
func (p *Provisioner) EnsureAccount(ctx context.Context, identity *auth.Identity) bool {
	if identity.Provider == model.ProviderCredentials {
		return true
	}

	name := identity.Name
	if name == "" {
		name = identity.Email
	}
	user := &model.User{
		Email:    identity.Email,
		Name:     name,
		Provider: identity.Provider,
	}

	created, err := p.users.InsertIfAbsent(ctx, user)
	if err != nil {
		p.logger.ErrorContext(ctx, "oauth provisioning failed",
			"email", identity.Email,
			"provider", identity.Provider,
			"policy", p.policy,
			"error", apperrors.StoreUnavailable(apperrors.ErrProvisioningFailure.Error(), err),
		)
		if p.policy == config.PolicyFail {
			return false
		}
		p.enqueue(ctx, model.ProvisioningRetry{
			Email:       identity.Email,
			Name:        name,
			Provider:    identity.Provider,
			Attempts:    1,
			FirstFailed: p.now(),
			LastError:   err.Error(),
		})
		return true
	}

	if created {
		p.logger.InfoContext(ctx, "provisioned oauth account", "user_id", user.ID, "provider", user.Provider)
	}
	identity.ID = user.ID.String()
	identity.Name = user.DisplayName()
	return true
}

// Run retries queued provisioning on every tick until ctx is cancelled.
func (p *Provisioner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Drain processes up to one batch of queued retries and returns how many
// rows now exist. Failed retries go back on the queue until they run out of
// attempts.
func (p *Provisioner) Drain(ctx context.Context) int {
	var (
		done    int
		requeue []model.ProvisioningRetry
	)

	for i := 0; i < provisioningBatchSize; i++ {
		retry, err := p.queue.Dequeue(ctx)
		var corrupt *CorruptRetryError
		if errors.As(err, &corrupt) {
			p.logger.ErrorContext(ctx, "dropping unreadable provisioning retry", "payload", corrupt.Payload, "error", corrupt.Err)
			continue
		}
		if err != nil {
			p.logger.WarnContext(ctx, "provisioning queue unavailable", "error", err)
			break
		}
		if retry == nil {
			break
		}

		if _, err := p.users.InsertIfAbsent(ctx, retry.User()); err != nil {
			retry.Attempts++
			retry.LastError = err.Error()
			if retry.Attempts >= maxProvisioningAttempts {
				p.logger.ErrorContext(ctx, "giving up on oauth provisioning",
					"email", retry.Email, "provider", retry.Provider, "attempts", retry.Attempts, "error", err)
				continue
			}
			requeue = append(requeue, *retry)
			continue
		}
		p.logger.InfoContext(ctx, "reconciled oauth account", "email", retry.Email, "provider", retry.Provider)
		done++
	}

	for _, retry := range requeue {
		p.enqueue(ctx, retry)
	}
	return done
}

func (p *Provisioner) enqueue(ctx context.Context, retry model.ProvisioningRetry) {
	if p.queue == nil {
		p.logger.ErrorContext(ctx, "no provisioning queue, retry dropped", "email", retry.Email)
		return
	}
	if err := p.queue.Enqueue(ctx, retry); err != nil {
		p.logger.ErrorContext(ctx, "could not queue provisioning retry", "email", retry.Email, "error", err)
	}
}
