package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-storefront-client/authmodel"
	"github.com/jrsteele09/go-storefront-client/internal/errors"
	"github.com/jrsteele09/go-storefront-client/token"
)

// errSessionChanged reports a refresh whose session was logged out or replaced
// while the call was in flight.
var errSessionChanged = errors.New("session changed during refresh")

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refresh exchanges the refresh token for a new access token and stores the
// result. It is a plain round trip that never re-enters the 401 handling.
func (c *Client) refresh(ctx context.Context, generation uint64, refreshToken string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	c.logger.Debug().Msg("apiclient: refreshing access token")

	r := &Request{
		Method: http.MethodPost,
		Path:   c.endpoints.Refresh,
		Body:   refreshRequest{RefreshToken: refreshToken},
	}
	payload, err := r.encode()
	if err != nil {
		return nil, err
	}
	req, err := r.build(c.baseURL, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, transportError(r.op(), err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil && resp.StatusCode < 300 {
		return nil, errors.Wrapf(errors.ErrInvalidResponse, "decode refresh response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(r.op(), resp.StatusCode, raw)
	}

	var tr authmodel.TokenResponse
	if err := json.Unmarshal(unwrap(raw), &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidResponse, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh returned no access token", errors.ErrInvalidResponse)
	}
	tr.ResolveExpiry(c.nowFunc())
	meta := tr.Meta()
	if meta.ExpiresAt == nil {
		if claims, err := token.DecodeClaims(meta.AccessToken); err == nil {
			meta.ExpiresAt = claims.ExpiresAtMillis()
		}
	}

	if !c.creds.UpdateTokens(generation, meta) {
		return nil, errSessionChanged
	}
	c.logger.Debug().Bool("rotated", meta.RefreshToken != "").Msg("apiclient: access token refreshed")

	tok := &oauth2.Token{AccessToken: meta.AccessToken, TokenType: meta.TokenType}
	return tok, nil
}
