// Package apiclient talks to the rental API and normalises every response
// into one Envelope before it reaches the lifecycle code.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/google/uuid"
)

// Session is the slice of the session store the client needs: read the
// token for every request, write it on login, clear it on 401.
type Session interface {
	Token() string
	Login(ctx context.Context, token string, user domain.User) error
	Logout(ctx context.Context)
}

type CarsCache interface {
	GetCars(ctx context.Context) ([]domain.Car, error)
	SetCars(ctx context.Context, cars []domain.Car) error
}

// Envelope is the uniform result of one API call.
type Envelope struct {
	OK     bool
	Status int
	Data   json.RawMessage
	Items  json.RawMessage
	Error  string

	err error
}

// Err converts a failed envelope into a typed error; nil when OK.
func (e Envelope) Err() error {
	if e.OK {
		return nil
	}
	return e.err
}

func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (e Envelope) DecodeItems(v any) error {
	if len(e.Items) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Items, v); err != nil {
		return fmt.Errorf("decoding items: %w", err)
	}
	return nil
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithCarsCache(cache CarsCache) Option {
	return func(c *Client) { c.cars = cache }
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	session    Session
	cars       CarsCache
	log        logger.ILogger
}

func New(baseURL string, timeout time.Duration, session Session, log logger.ILogger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		session:    session,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs one request and never panics or returns a Go error: every
// outcome, including transport failure, is an Envelope.
func (c *Client) Do(ctx context.Context, method, path string, body any) Envelope {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return Envelope{Status: 0, Error: err.Error(), err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warning("request failed",
			logger.String("method", method),
			logger.String("path", path),
			logger.Error(err),
		)
		return Envelope{
			Status: 0,
			Error:  "network error",
			err:    &TransportError{Method: method, Path: path, Err: err},
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{
			Status: 0,
			Error:  "network error",
			err:    &TransportError{Method: method, Path: path, Err: err},
		}
	}

	env := Envelope{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Data:   raw,
	}

	fields := map[string]json.RawMessage{}
	isObject := json.Unmarshal(raw, &fields) == nil
	if isObject {
		env.Items = fields["items"]
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Info("unauthorized response, clearing session", logger.String("path", path))
		if c.session != nil {
			c.session.Logout(ctx)
		}
		env.Error = errorMessage(fields, isObject, raw)
		if env.Error == "" {
			env.Error = "Unauthorized"
		}
		env.err = ErrUnauthorized
		return env
	}

	if !env.OK {
		env.Error = errorMessage(fields, isObject, raw)
		env.err = &APIError{Status: resp.StatusCode, Message: env.Error}
		c.log.Debug("api error",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.String("message", env.Error),
		)
	}
	return env
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func errorMessage(fields map[string]json.RawMessage, isObject bool, raw []byte) string {
	if isObject {
		for _, key := range []string{"message", "error", "msg"} {
			var msg string
			if v, ok := fields[key]; ok && json.Unmarshal(v, &msg) == nil && msg != "" {
				return msg
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
