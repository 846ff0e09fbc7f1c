// Package identity resolves an external sign-in into a verified identity.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/safar/agrimarket/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrUpstream covers every failure talking to the provider, including a
// response without an email address.
var ErrUpstream = errors.New("identity provider failure")

type Identity struct {
	Email      string
	FirstName  string
	LastName   string
	ExternalID string
	AvatarURL  string
	Verified   bool
}

type Provider interface {
	Exchange(ctx context.Context, code string) (*Identity, error)
}

type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client
}

type Option func(*GoogleProvider)

// WithEndpoint points the token exchange at another server.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(p *GoogleProvider) { p.oauth.Endpoint = endpoint }
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *GoogleProvider) { p.client = client }
}

func NewGoogleProvider(cfg config.GoogleConfig, opts ...Option) *GoogleProvider {
	p := &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: cfg.UserInfoURL,
		client:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build userinfo request: %v", ErrUpstream, err)
	}

	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", ErrUpstream, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", ErrUpstream, err)
	}

	if info.Email == "" {
		return nil, fmt.Errorf("%w: no email in userinfo", ErrUpstream)
	}

	return &Identity{
		Email:      info.Email,
		FirstName:  info.GivenName,
		LastName:   info.FamilyName,
		ExternalID: info.ID,
		AvatarURL:  info.Picture,
		Verified:   info.VerifiedEmail,
	}, nil
}
