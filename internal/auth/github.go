package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// ProviderGitHub is the id of the GitHub OAuth provider.
const ProviderGitHub = "github"

const defaultGitHubAPI = "https://api.github.com"

// OAuthClient runs the authorization-code exchange with an external provider
// and turns the result into an Assertion.
type OAuthClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchAssertion(ctx context.Context, token *oauth2.Token) (*Assertion, error)
}

// GitHubClient implements OAuthClient for GitHub.
type GitHubClient struct {
	config  *oauth2.Config
	apiBase string
}

// githubUser represents the subset of fields we care about from GitHub's /user API.
type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// NewGitHubClient builds a client whose callback lands on
// <baseURL>/api/auth/callback/github.
func NewGitHubClient(clientID, clientSecret, baseURL string) *GitHubClient {
	return &GitHubClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
			RedirectURL:  fmt.Sprintf("%s/api/auth/callback/%s", baseURL, ProviderGitHub),
		},
		apiBase: defaultGitHubAPI,
	}
}

// AuthCodeURL returns the GitHub authorize URL for state.
func (c *GitHubClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (c *GitHubClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.config.Exchange(ctx, code)
}

// FetchAssertion reads the GitHub profile. When the profile email is private
// the primary verified address is used instead.
func (c *GitHubClient) FetchAssertion(ctx context.Context, token *oauth2.Token) (*Assertion, error) {
	client := c.config.Client(ctx, token)

	var user githubUser
	if err := getJSON(ctx, client, c.apiBase+"/user", &user); err != nil {
		return nil, fmt.Errorf("fetch github user: %w", err)
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := getJSON(ctx, client, c.apiBase+"/user/emails", &emails); err != nil {
			return nil, fmt.Errorf("fetch github emails: %w", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return nil, fmt.Errorf("github account %s has no verified email", user.Login)
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &Assertion{
		Provider: ProviderGitHub,
		Subject:  strconv.FormatInt(user.ID, 10),
		Email:    email,
		Name:     name,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
