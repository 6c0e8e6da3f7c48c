package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallysync/internal/types/challenge"
)

func staticToken(token string) TokenProvider {
	return func() string { return token }
}

func TestDoRequiresToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""), srv.Client())
	_, err := c.ListChallenges(context.Background(), false)

	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, called, "no request may leave the device without a token")
}

func TestDoSendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/challenges", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("activeOnly"))
		json.NewEncoder(w).Encode([]challenge.Challenge{{ID: "ch-1", Name: "pushups"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok-123"), srv.Client())
	out, err := c.ListChallenges(context.Background(), true)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ch-1", out[0].ID)
}

func TestDoMapsErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "token expired"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok-123"), srv.Client())
	_, err := c.ListChallenges(context.Background(), false)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "token expired", apiErr.Message)
	assert.True(t, IsAuthError(err))
}

func TestDoKeepsRawErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream melted", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok-123"), srv.Client())
	err := c.DeleteChallenge(context.Background(), "ch-1")

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upstream melted")
	assert.True(t, Retryable(err))
}

func TestTransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL, staticToken("tok-123"), nil)
	_, err := c.ListChallenges(context.Background(), false)

	require.Error(t, err)
	assert.True(t, Retryable(err))
	assert.False(t, IsAuthError(err))
}
