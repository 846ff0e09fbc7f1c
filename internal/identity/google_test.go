package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safar/agrimarket/internal/config"
	"golang.org/x/oauth2"
)

func newFakeGoogle(t *testing.T, userInfo string, tokenStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			return
		}
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(userInfo))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider(config.GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/callback",
		UserInfoURL:  srv.URL + "/userinfo",
	},
		WithEndpoint(oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}),
		WithHTTPClient(srv.Client()),
	)
}

func TestGoogleExchange(t *testing.T) {
	srv := newFakeGoogle(t, `{"id":"g-1","email":"ama@example.com","given_name":"Ama","family_name":"Kone","picture":"https://img/1","verified_email":true}`, http.StatusOK)

	id, err := newTestProvider(srv).Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	if id.Email != "ama@example.com" || id.ExternalID != "g-1" || !id.Verified {
		t.Errorf("Unexpected identity %+v", id)
	}
	if id.FirstName != "Ama" || id.LastName != "Kone" || id.AvatarURL != "https://img/1" {
		t.Errorf("Unexpected profile %+v", id)
	}
}

func TestGoogleExchangeFailures(t *testing.T) {
	tests := []struct {
		name        string
		userInfo    string
		tokenStatus int
		code        string
	}{
		{"token rejected", `{}`, http.StatusUnauthorized, "good-code"},
		{"bad code", `{}`, http.StatusOK, "bad-code"},
		{"missing email", `{"id":"g-2"}`, http.StatusOK, "good-code"},
		{"garbage userinfo", `not json`, http.StatusOK, "good-code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeGoogle(t, tt.userInfo, tt.tokenStatus)
			_, err := newTestProvider(srv).Exchange(context.Background(), tt.code)
			if !errors.Is(err, ErrUpstream) {
				t.Errorf("Expected ErrUpstream, got %v", err)
			}
		})
	}
}
