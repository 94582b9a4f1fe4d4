package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Domenick1991/rentalwatch/internal/domain"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string   `json:"access_token"`
	User        *userDTO `json:"user"`
}

// Login exchanges credentials for a token and writes the session.
func (c *Client) Login(ctx context.Context, creds Credentials) (domain.User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return domain.User{}, domain.ValidationError{Msg: "username and password are required"}
	}
	env := c.Do(ctx, http.MethodPost, "/auth/login", creds)
	return c.completeAuth(ctx, env)
}

// Register creates an account; the server logs the new user in directly.
func (c *Client) Register(ctx context.Context, creds Credentials) (domain.User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" {
		return domain.User{}, domain.ValidationError{Field: "username", Msg: "is required"}
	}
	if err := domain.ValidatePassword(creds.Password); err != nil {
		return domain.User{}, err
	}
	env := c.Do(ctx, http.MethodPost, "/auth/register", creds)
	return c.completeAuth(ctx, env)
}

func (c *Client) completeAuth(ctx context.Context, env Envelope) (domain.User, error) {
	if err := env.Err(); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return domain.User{}, fmt.Errorf("%w: %s", ErrUnauthorized, env.Error)
		}
		return domain.User{}, err
	}

	var resp authResponse
	if err := env.Decode(&resp); err != nil {
		return domain.User{}, err
	}
	if resp.AccessToken == "" {
		return domain.User{}, errors.New("auth response has no access_token")
	}

	var user domain.User
	if resp.User != nil {
		u, err := resp.User.toDomain()
		if err != nil {
			return domain.User{}, err
		}
		user = u
	}

	if c.session != nil {
		if err := c.session.Login(ctx, resp.AccessToken, user); err != nil {
			return domain.User{}, fmt.Errorf("storing session: %w", err)
		}
	}
	return user, nil
}

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	env := c.Do(ctx, http.MethodGet, "/auth/me", nil)
	if err := env.Err(); err != nil {
		return domain.User{}, err
	}
	var resp struct {
		User json.RawMessage `json:"user"`
	}
	if err := env.Decode(&resp); err != nil {
		return domain.User{}, err
	}
	body := resp.User
	if len(body) == 0 {
		body = env.Data
	}
	var dto userDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.User{}, fmt.Errorf("decoding user: %w", err)
	}
	return dto.toDomain()
}
