package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	apperrors "dietdash/internal/errors"
)

// SeedUser is one account in a seed file.
type SeedUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SeedReport counts the outcome of a seed run.
type SeedReport struct {
	Created  int
	Existing int
	Failed   int
}

// LoadSeedUsers reads a JSON array of SeedUser from a file path or an
// http(s) URL.
func LoadSeedUsers(ctx context.Context, source string, client *http.Client) ([]SeedUser, error) {
	var body io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch seed users: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch seed users: unexpected status %d", resp.StatusCode)
		}
		body = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		body = f
	}
	defer body.Close()

	var users []SeedUser
	if err := json.NewDecoder(body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode seed users: %w", err)
	}
	return users, nil
}

// SeedUsers registers every user through the normal registration flow.
// Existing emails are counted, not treated as failures.
func SeedUsers(ctx context.Context, svc AuthService, users []SeedUser, logger *slog.Logger) SeedReport {
	var report SeedReport
	for _, u := range users {
		_, err := svc.Register(ctx, u.Email, u.Password, u.Name)
		switch {
		case err == nil:
			report.Created++
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			report.Existing++
		default:
			report.Failed++
			logger.WarnContext(ctx, "seed user skipped", "email", u.Email, "error", err)
		}
	}
	return report
}
