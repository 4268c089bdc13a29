// Package authorizer attaches the current session's bearer credential to
// outgoing requests and drives the 401-triggered refresh-and-retry protocol.
// It is transparent to callers: wrap it around an http.Client's transport and
// requests come back authorized or failed, never half-handled.
package authorizer

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/session"
)

// SessionSource is the slice of the session manager the transport needs.
type SessionSource interface {
	Current() *session.Session
	Refresh(ctx context.Context) (*session.Session, error)
}

var _ http.RoundTripper = (*Transport)(nil)

// Transport implements http.RoundTripper. Requests matching the exempt
// matcher (the issuer's own auth surface) pass through untouched; everything
// else carries "Authorization: Bearer <token>" when a session exists. A 401
// triggers exactly one refresh (single-flight at the manager) and one retry
// of the original request; a second 401 after a successful refresh is final.
type Transport struct {
	base     http.RoundTripper
	sessions SessionSource
	exempt   func(*http.Request) bool
	logger   zerolog.Logger
	metrics  *Metrics
}

// Option defines a function type to modify the Transport instance.
type Option func(*Transport)

// WithBase sets the wrapped RoundTripper. Defaults to http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = rt
	}
}

// WithExempt sets the matcher for requests that must not carry a bearer
// credential.
func WithExempt(matcher func(*http.Request) bool) Option {
	return func(t *Transport) {
		t.exempt = matcher
	}
}

// WithIssuerBase exempts the issuer auth surface rooted at baseURL.
func WithIssuerBase(baseURL string) Option {
	base := strings.TrimRight(baseURL, "/")
	return WithExempt(func(req *http.Request) bool {
		return strings.HasPrefix(req.URL.String(), base)
	})
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(m *Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// New creates a Transport reading sessions from the given source.
func New(sessions SessionSource, options ...Option) *Transport {
	t := &Transport{
		base:     http.DefaultTransport,
		sessions: sessions,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.exempt != nil && t.exempt(req) {
		return t.base.RoundTrip(req)
	}

	sess := t.sessions.Current()
	if sess == nil {
		// Unauthenticated pass-through; the server decides whether the
		// endpoint actually required authorization.
		return t.base.RoundTrip(req)
	}

	requestID := uuid.New().String()
	logger := t.logger.With().Str("request_id", requestID).Str("url", req.URL.String()).Logger()

	resp, err := t.base.RoundTrip(withBearer(req, sess.AccessToken))
	if err != nil {
		return nil, err
	}
	t.metrics.incAuthorized()
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	t.metrics.incUnauthorized()
	logger.Debug().Msg("request rejected with 401, refreshing session")

	if req.Body != nil && req.GetBody == nil {
		// The body has been consumed and cannot be replayed; retrying would
		// send a truncated request.
		logger.Warn().Msg("401 on non-replayable request, not retried")
		return resp, nil
	}

	renewed, refreshErr := t.sessions.Refresh(req.Context())
	if refreshErr != nil {
		// The manager has already transitioned to logged-out. The request
		// resolves as a final failure rather than a bare 401 the caller
		// might be tempted to retry.
		drainAndClose(resp.Body)
		t.metrics.incRetryOutcome("refresh_failed")
		logger.Warn().Err(refreshErr).Msg("session refresh failed, request abandoned")
		return nil, errors.Wrap(refreshErr, "[Transport.RoundTrip] request unauthorized and session refresh failed")
	}

	drainAndClose(resp.Body)
	t.metrics.incRetries()

	retry := withBearer(req, renewed.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[Transport.RoundTrip] replay request body")
		}
		retry.Body = body
	}

	resp, err = t.base.RoundTrip(retry)
	if err != nil {
		t.metrics.incRetryOutcome("transport_error")
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// The credential was valid at retry time and was still rejected.
		// Surface it; retrying further risks a loop against a misbehaving
		// server.
		t.metrics.incRetryOutcome("unauthorized_again")
		logger.Warn().Msg("401 persisted after refresh, giving up")
		return resp, nil
	}

	t.metrics.incRetryOutcome("ok")
	logger.Debug().Int("status", resp.StatusCode).Msg("request retried with renewed token")
	return resp, nil
}

// withBearer clones req with the Authorization header set, leaving the
// caller's request untouched.
func withBearer(req *http.Request, token string) *http.Request {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+token)
	return cloned
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
