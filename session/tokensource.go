package session

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// TokenSource adapts the Manager to the oauth2 ecosystem. The returned source
// hands out the current access token and refreshes through the Manager (so
// the single-flight discipline still holds) once it has expired.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, manager: m}
}

type tokenSource struct {
	ctx     context.Context
	manager *Manager
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	sess := ts.manager.Current()
	if sess == nil {
		return nil, errors.Wrap(NoSessionErr, "[tokenSource.Token]")
	}

	if sess.Expired(ts.manager.nowTime()) {
		renewed, err := ts.manager.Refresh(ts.ctx)
		if err != nil {
			return nil, errors.Wrap(err, "[tokenSource.Token] refresh")
		}
		sess = renewed
	}

	return &oauth2.Token{
		AccessToken:  sess.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: sess.RefreshToken,
		Expiry:       sess.AccessTokenExpiry,
	}, nil
}
