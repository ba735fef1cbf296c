package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
)

// userinfoProvider covers the four supported providers: authorization-code
// exchange via x/oauth2, then one GET against the provider's userinfo
// endpoint with the bearer token.
type userinfoProvider struct {
	name        string
	config      *oauth2.Config
	userinfoURL string
	parse       func(body []byte) (*Identity, error)
}

func (p *userinfoProvider) Name() string { return p.name }

func (p *userinfoProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *userinfoProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange failed: %v", p.name, err)
	}

	client := p.config.Client(ctx, token)
	resp, err := client.Get(p.userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo request failed: %v", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s userinfo returned status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return p.parse(body)
}

func NewGoogle(clientID, clientSecret, redirectURL string) Provider {
	return &userinfoProvider{
		name: "google",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		userinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		parse: func(body []byte) (*Identity, error) {
			var u struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Name  string `json:"name"`
			}
			if err := json.Unmarshal(body, &u); err != nil {
				return nil, err
			}
			return &Identity{ID: u.ID, Email: u.Email, Name: u.Name}, nil
		},
	}
}

func NewGitHub(clientID, clientSecret, redirectURL string) Provider {
	return &userinfoProvider{
		name: "github",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://github.com/login/oauth/authorize",
				TokenURL: "https://github.com/login/oauth/access_token",
			},
		},
		userinfoURL: "https://api.github.com/user",
		parse: func(body []byte) (*Identity, error) {
			var u struct {
				ID    int64  `json:"id"`
				Email string `json:"email"`
				Name  string `json:"name"`
				Login string `json:"login"`
			}
			if err := json.Unmarshal(body, &u); err != nil {
				return nil, err
			}
			name := u.Name
			if name == "" {
				name = u.Login
			}
			return &Identity{ID: strconv.FormatInt(u.ID, 10), Email: u.Email, Name: name}, nil
		},
	}
}

func NewDiscord(clientID, clientSecret, redirectURL string) Provider {
	return &userinfoProvider{
		name: "discord",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
		userinfoURL: "https://discord.com/api/users/@me",
		parse: func(body []byte) (*Identity, error) {
			var u struct {
				ID       string `json:"id"`
				Email    string `json:"email"`
				Username string `json:"username"`
			}
			if err := json.Unmarshal(body, &u); err != nil {
				return nil, err
			}
			return &Identity{ID: u.ID, Email: u.Email, Name: u.Username}, nil
		},
	}
}

func NewTwitch(clientID, clientSecret, redirectURL string) Provider {
	p := &userinfoProvider{
		name: "twitch",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "user:read:email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://id.twitch.tv/oauth2/authorize",
				TokenURL: "https://id.twitch.tv/oauth2/token",
			},
		},
		// OIDC userinfo; unlike helix/users it needs no Client-Id header.
		userinfoURL: "https://id.twitch.tv/oauth2/userinfo",
		parse: func(body []byte) (*Identity, error) {
			var u struct {
				Sub               string `json:"sub"`
				Email             string `json:"email"`
				PreferredUsername string `json:"preferred_username"`
			}
			if err := json.Unmarshal(body, &u); err != nil {
				return nil, err
			}
			return &Identity{ID: u.Sub, Email: u.Email, Name: u.PreferredUsername}, nil
		},
	}
	return p
}
