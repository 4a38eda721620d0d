package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSocialDataServer(t *testing.T) *SocialDataClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/twitter/user/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/twitter/user/alice":
			w.Write([]byte(`{"id_str":"900","screen_name":"alice"}`))
		case "/twitter/user/1234567":
			w.Write([]byte(`{"id_str":"555","screen_name":"1234567"}`))
		case "/twitter/user/900/following/10":
			w.Write([]byte(`{"status":"success","is_following":true}`))
		case "/twitter/user/901/following/10":
			w.Write([]byte(`{"status":"success","is_following":false}`))
		case "/twitter/user/boom/following/10", "/twitter/user/boom":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"status":"error","message":"upstream"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewSocialDataClient(srv.URL+"/", "secret", 2*time.Second)
}

func TestSocialDataClient_ResolveHandle(t *testing.T) {
	c := newSocialDataServer(t)
	ctx := context.Background()

	id, err := c.ResolveHandle(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "900", id)

	id, err = c.ResolveHandle(ctx, "@alice")
	require.NoError(t, err)
	assert.Equal(t, "900", id)

	id, err = c.ResolveHandle(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", id)

	// An all-digit screen name is looked up, not taken as an id.
	id, err = c.ResolveHandle(ctx, "@1234567")
	require.NoError(t, err)
	assert.Equal(t, "555", id)

	_, err = c.ResolveHandle(ctx, "nobody")
	assert.ErrorIs(t, err, ErrHandleNotFound)

	_, err = c.ResolveHandle(ctx, "boom")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHandleNotFound)
}

func TestSocialDataClient_IsFollowing(t *testing.T) {
	c := newSocialDataServer(t)
	ctx := context.Background()

	ok, err := c.IsFollowing(ctx, "900", "10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsFollowing(ctx, "901", "10")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.IsFollowing(ctx, "boom", "10")
	assert.Error(t, err)
}

func TestSocialDataClient_BadKey(t *testing.T) {
	c := newSocialDataServer(t)
	c.APIKey = "wrong"
	_, err := c.IsFollowing(context.Background(), "900", "10")
	assert.Error(t, err)
}
