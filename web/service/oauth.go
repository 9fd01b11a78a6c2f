package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/RibkiAnas/resumaker/config"
	"github.com/RibkiAnas/resumaker/util/common"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBase = "https://api.github.com"

// GitHubProfile is the subset of the GitHub user we keep. ID is the
// stable identifier stored on the connection; everything else only
// prefills onboarding.
type GitHubProfile struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// OAuthService drives the GitHub authorization code flow.
type OAuthService struct{}

// GitHubConfig builds the oauth2 config for the given callback URL.
func (s *OAuthService) GitHubConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.GetGitHubClientID(),
		ClientSecret: config.GetGitHubClientSecret(),
		Endpoint:     github.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{"user:email"},
	}
}

// Enabled reports whether GitHub credentials are configured.
func (s *OAuthService) Enabled() bool {
	return config.GetGitHubClientID() != "" && config.GetGitHubClientSecret() != ""
}

// Exchange swaps the authorization code for a token and fetches the
// user's profile.
func (s *OAuthService) Exchange(ctx context.Context, redirectURL, code string) (*GitHubProfile, error) {
	token, err := s.GitHubConfig(redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.fetchProfile(ctx, token)
}

func (s *OAuthService) fetchProfile(ctx context.Context, token *oauth2.Token) (*GitHubProfile, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	var raw struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, githubAPIBase+"/user", &raw); err != nil {
		return nil, err
	}

	profile := &GitHubProfile{
		ID:        strconv.FormatInt(raw.ID, 10),
		Login:     raw.Login,
		Name:      raw.Name,
		Email:     strings.ToLower(raw.Email),
		AvatarURL: raw.AvatarURL,
	}

	// The public email may be hidden; fall back to the primary address.
	if profile.Email == "" {
		var emails []struct {
			Email   string `json:"email"`
			Primary bool   `json:"primary"`
		}
		if err := getJSON(ctx, client, githubAPIBase+"/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary {
				profile.Email = strings.ToLower(e.Email)
				break
			}
		}
	}
	if profile.Email == "" {
		return nil, common.NewError("github profile has no usable email")
	}
	return profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
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
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github api %s returned %d: %s", url, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
