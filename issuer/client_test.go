package issuer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/issuer"
)

type recordedRequest struct {
	Path string
	Body map[string]any
}

// fakeIssuerServer scripts the wire behaviour of the credential issuer.
func fakeIssuerServer(t *testing.T, status int, response any, requests *[]recordedRequest) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if requests != nil {
			*requests = append(*requests, recordedRequest{Path: r.URL.Path, Body: body})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
}

func errorBody(code string) map[string]any {
	return map[string]any{"error": map[string]any{"message": code}}
}

func grantBody() map[string]any {
	return map[string]any{
		"kind":         "identitytoolkit#VerifyPasswordResponse",
		"localId":      "user-1",
		"email":        "john.doe@example.com",
		"idToken":      "jwt-access",
		"refreshToken": "jwt-refresh",
		"registered":   true,
		"expiresIn":    3600,
	}
}

func TestClient_Login(t *testing.T) {
	t.Run("parses a grant", func(t *testing.T) {
		var requests []recordedRequest
		srv := fakeIssuerServer(t, http.StatusOK, grantBody(), &requests)
		defer srv.Close()

		client := issuer.NewClient(srv.URL)
		grant, err := client.Login(context.Background(), "john.doe@example.com", "password123")
		require.NoError(t, err)
		require.Equal(t, "user-1", grant.LocalID)
		require.Equal(t, "john.doe@example.com", grant.Email)
		require.Equal(t, "jwt-access", grant.IDToken)
		require.Equal(t, "jwt-refresh", grant.RefreshToken)
		require.Equal(t, 3600, grant.ExpiresIn)

		require.Len(t, requests, 1)
		require.Equal(t, issuer.LoginPath, requests[0].Path)
		require.Equal(t, "john.doe@example.com", requests[0].Body["email"])
		require.Equal(t, "password123", requests[0].Body["password"])
		require.Equal(t, true, requests[0].Body["returnSecureToken"])
	})

	t.Run("maps unknown email", func(t *testing.T) {
		srv := fakeIssuerServer(t, http.StatusUnauthorized, errorBody("EMAIL_NOT_FOUND"), nil)
		defer srv.Close()

		_, err := issuer.NewClient(srv.URL).Login(context.Background(), "x@y.z", "p")
		require.ErrorIs(t, err, issuer.EmailNotFoundErr)
	})

	t.Run("maps wrong password", func(t *testing.T) {
		srv := fakeIssuerServer(t, http.StatusUnauthorized, errorBody("INVALID_PASSWORD"), nil)
		defer srv.Close()

		_, err := issuer.NewClient(srv.URL).Login(context.Background(), "x@y.z", "p")
		require.ErrorIs(t, err, issuer.InvalidPasswordErr)
	})

	t.Run("unknown code collapses to unexpected", func(t *testing.T) {
		srv := fakeIssuerServer(t, http.StatusInternalServerError, errorBody("TEAPOT"), nil)
		defer srv.Close()

		_, err := issuer.NewClient(srv.URL).Login(context.Background(), "x@y.z", "p")
		require.ErrorIs(t, err, issuer.UnexpectedErr)
	})

	t.Run("surfaces transport failures", func(t *testing.T) {
		srv := fakeIssuerServer(t, http.StatusOK, grantBody(), nil)
		srv.Close() // nothing listening

		_, err := issuer.NewClient(srv.URL).Login(context.Background(), "x@y.z", "p")
		require.Error(t, err)
		require.NotErrorIs(t, err, issuer.UnexpectedErr)
	})

	t.Run("rejects a grant without a token", func(t *testing.T) {
		srv := fakeIssuerServer(t, http.StatusOK, map[string]any{"email": "x@y.z"}, nil)
		defer srv.Close()

		_, err := issuer.NewClient(srv.URL).Login(context.Background(), "x@y.z", "p")
		require.ErrorIs(t, err, issuer.UnexpectedErr)
	})
}

func TestClient_Signup(t *testing.T) {
	t.Run("targets the signup endpoint", func(t *testing.T) {
		var requests []recordedRequest
		srv := fakeIssuerServer(t, http.StatusOK, grantBody(), &requests)
		defer srv.Close()

		_, err := issuer.NewClient(srv.URL).Signup(context.Background(), "new@y.z", "p")
		require.NoError(t, err)
		require.Len(t, requests, 1)
		require.Equal(t, issuer.SignupPath, requests[0].Path)
	})

	t.Run("maps an existing email", func(t *testing.T) {
		srv := fakeIssuerServer(t, http.StatusBadRequest, errorBody("EMAIL_EXISTS"), nil)
		defer srv.Close()

		_, err := issuer.NewClient(srv.URL).Signup(context.Background(), "x@y.z", "p")
		require.ErrorIs(t, err, issuer.EmailExistsErr)
	})
}

func TestClient_Refresh(t *testing.T) {
	t.Run("sends the refresh token", func(t *testing.T) {
		var requests []recordedRequest
		srv := fakeIssuerServer(t, http.StatusOK, grantBody(), &requests)
		defer srv.Close()

		grant, err := issuer.NewClient(srv.URL).Refresh(context.Background(), "old-refresh")
		require.NoError(t, err)
		require.Equal(t, "jwt-access", grant.IDToken)

		require.Len(t, requests, 1)
		require.Equal(t, issuer.RefreshPath, requests[0].Path)
		require.Equal(t, "old-refresh", requests[0].Body["refreshToken"])
	})

	t.Run("any issuer rejection is a refresh rejection", func(t *testing.T) {
		srv := fakeIssuerServer(t, http.StatusUnauthorized, errorBody("INVALID_REFRESH_TOKEN"), nil)
		defer srv.Close()

		_, err := issuer.NewClient(srv.URL).Refresh(context.Background(), "stale")
		require.ErrorIs(t, err, issuer.RefreshInvalidErr)
	})

	t.Run("even an unexpected rejection", func(t *testing.T) {
		srv := fakeIssuerServer(t, http.StatusInternalServerError, errorBody("SOMETHING_ELSE"), nil)
		defer srv.Close()

		_, err := issuer.NewClient(srv.URL).Refresh(context.Background(), "stale")
		require.ErrorIs(t, err, issuer.RefreshInvalidErr)
	})
}
