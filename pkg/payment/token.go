package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// darajaTokenSource performs Daraja's client-credentials exchange, which is a
// GET with Basic auth rather than the form POST golang.org/x/oauth2/clientcredentials sends.
// The request is bound to ctx.
type darajaTokenSource struct {
	ctx            context.Context
	url            string
	consumerKey    string
	consumerSecret string
	client         *http.Client
	now            func() time.Time
}

const defaultTokenTTL = 3599 * time.Second

type darajaTokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   FlexInt `json:"expires_in"`
}

func (s *darajaTokenSource) Token() (*oauth2.Token, error) {
	if s.consumerKey == "" || s.consumerSecret == "" {
		return nil, ErrCredentialsMissing
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.SetBasicAuth(s.consumerKey, s.consumerSecret)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}
	var out darajaTokenResponse
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Status: resp.Status, Body: "no access_token in response"}
	}
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &oauth2.Token{
		AccessToken: out.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.now().Add(ttl),
	}, nil
}
