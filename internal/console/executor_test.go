package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryit/pkg/broker"
	"tryit/pkg/credentials"
	"tryit/pkg/logger"
)

func newTokenServer(calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires_in":   300,
		})
	}))
}

func testCreds(tokenURL string) credentials.WorkspaceCredentials {
	return credentials.WorkspaceCredentials{
		Workspace:    "acme",
		ClientID:     "client-acme",
		ClientSecret: "s3cret",
		TokenURL:     tokenURL,
	}
}

func TestExecutorInjectsBearerAndClonesHeaders(t *testing.T) {
	var tokenCalls int32
	idp := newTokenServer(&tokenCalls)
	defer idp.Close()

	var gotAuth, gotAccept string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	creds := testCreds(idp.URL)
	e := NewExecutor(stubSource{err: errors.New("must not be called")}, broker.New(nil, logger.Nop()), nil, logger.Nop())

	hdr := http.Header{}
	hdr.Set("Accept", "application/json")
	resp, err := e.Do(context.Background(), Request{
		Method:      http.MethodGet,
		URL:         api.URL + "/v1/accounts",
		Header:      hdr,
		Credentials: &creds,
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
	// Supplied credentials are used as-is; the stub source would have errored.
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))
}

func TestExecutorRetriesOnceAfter401(t *testing.T) {
	var tokenCalls int32
	idp := newTokenServer(&tokenCalls)
	defer idp.Close()

	var apiCalls int32
	var authSeen []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authSeen = append(authSeen, r.Header.Get("Authorization"))
		if atomic.AddInt32(&apiCalls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	creds := testCreds(idp.URL)
	e := NewExecutor(stubSource{}, broker.New(nil, logger.Nop()), nil, logger.Nop())

	resp, err := e.Do(context.Background(), Request{URL: api.URL + "/v1/accounts", Credentials: &creds})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&apiCalls))
	// The cache was cleared and repopulated exactly once: the retry carries
	// a freshly minted token.
	assert.EqualValues(t, 2, atomic.LoadInt32(&tokenCalls))
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-2"}, authSeen)
}

func TestExecutorNeverRetriesTwice(t *testing.T) {
	var tokenCalls int32
	idp := newTokenServer(&tokenCalls)
	defer idp.Close()

	var apiCalls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	creds := testCreds(idp.URL)
	e := NewExecutor(stubSource{}, broker.New(nil, logger.Nop()), nil, logger.Nop())

	resp, err := e.Do(context.Background(), Request{URL: api.URL, Credentials: &creds})
	require.NoError(t, err)
	defer resp.Body.Close()

	// The second 401 is returned verbatim; no third attempt.
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&apiCalls))
}

func TestExecutorResolvesWorkspaceThroughSource(t *testing.T) {
	var tokenCalls int32
	idp := newTokenServer(&tokenCalls)
	defer idp.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	e := NewExecutor(stubSource{creds: testCreds(idp.URL)}, broker.New(nil, logger.Nop()), nil, logger.Nop())
	resp, err := e.Do(context.Background(), Request{URL: api.URL, Workspace: "acme"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExecutorWrapsFailures(t *testing.T) {
	t.Run("resolution failure", func(t *testing.T) {
		e := NewExecutor(stubSource{err: errors.New("resolver down")}, broker.New(nil, logger.Nop()), nil, logger.Nop())
		_, err := e.Do(context.Background(), Request{URL: "https://api.example.com", Workspace: "acme"})
		var af *AuthFailedError
		require.ErrorAs(t, err, &af)
		assert.ErrorContains(t, errors.Unwrap(af), "resolver down")
	})

	t.Run("token exchange failure keeps upstream detail", func(t *testing.T) {
		idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad client", http.StatusBadRequest)
		}))
		defer idp.Close()

		creds := testCreds(idp.URL)
		e := NewExecutor(stubSource{}, broker.New(nil, logger.Nop()), nil, logger.Nop())
		_, err := e.Do(context.Background(), Request{URL: "https://api.example.com", Credentials: &creds})

		var af *AuthFailedError
		require.ErrorAs(t, err, &af)
		var rf *broker.RequestFailedError
		require.ErrorAs(t, err, &rf)
		assert.Equal(t, http.StatusBadRequest, rf.Status)
	})
}
