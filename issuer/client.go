package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Endpoint paths, relative to the configured base URL.
const (
	LoginPath   = "/login"
	SignupPath  = "/signup"
	RefreshPath = "/refresh-token"
)

const defaultTimeout = 10 * time.Second

var _ API = (*Client)(nil)

// Client talks to the credential issuer over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The caller keeps
// responsibility for its timeout configuration.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates an issuer client for the given base URL
// (e.g. "http://localhost:8080/api/auth").
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// BaseURL returns the configured issuer base URL. The request authorizer uses
// it to exempt the issuer's own endpoints from bearer attachment.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type authRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Login implements API.
func (c *Client) Login(ctx context.Context, email, password string) (*Grant, error) {
	grant, err := c.post(ctx, LoginPath, authRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	return grant, nil
}

// Signup implements API.
func (c *Client) Signup(ctx context.Context, email, password string) (*Grant, error) {
	grant, err := c.post(ctx, SignupPath, authRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Signup]")
	}
	return grant, nil
}

// Refresh implements API. Any rejection by the issuer, regardless of wire
// code, surfaces as RefreshInvalidErr: there is no recoverable failure mode
// for a refresh token the issuer will not honour.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	grant, err := c.post(ctx, RefreshPath, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		if isWireError(err) {
			return nil, errors.Wrap(RefreshInvalidErr, err.Error())
		}
		return nil, errors.Wrap(err, "[Client.Refresh]")
	}
	return grant, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Grant, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "issuer unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Message == "" {
			return nil, errors.Wrapf(UnexpectedErr, "status %d", resp.StatusCode)
		}
		return nil, codeError(er.Error.Message)
	}

	grant := &Grant{}
	if err := json.NewDecoder(resp.Body).Decode(grant); err != nil {
		return nil, errors.Wrap(UnexpectedErr, err.Error())
	}
	if grant.IDToken == "" {
		return nil, errors.Wrap(UnexpectedErr, "grant missing idToken")
	}
	return grant, nil
}

// isWireError reports whether err originated from an issuer error body rather
// than the transport.
func isWireError(err error) bool {
	for _, sentinel := range []error{EmailNotFoundErr, InvalidPasswordErr, EmailExistsErr, RefreshInvalidErr, UnexpectedErr} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
