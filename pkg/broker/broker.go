// pkg/broker/broker.go
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tryit/pkg/credentials"
)

// ExpirySlack is subtracted from a token's remaining lifetime before the
// cache will serve it, so a token cannot expire between being read and used.
const ExpirySlack = 60 * time.Second

// RequestFailedError carries the upstream status and body of a failed token
// exchange for diagnostics.
type RequestFailedError struct {
	Status int
	Body   string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("token request failed: status %d: %s", e.Status, e.Body)
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tryit_token_cache_hits_total",
		Help: "Token requests served from the in-memory cache.",
	})
	exchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tryit_token_exchanges_total",
		Help: "Client-credentials exchanges by outcome.",
	}, []string{"outcome"})
)

// Broker exchanges workspace credentials for bearer tokens and caches them
// per workspace. The cache lives in process memory only; a restart clears it.
type Broker struct {
	client *http.Client
	now    func() time.Time
	log    *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[string]cachedToken
	group singleflight.Group
}

type Option func(*Broker)

// WithClock injects the time source, so tests drive expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func New(client *http.Client, log *zap.SugaredLogger, opts ...Option) *Broker {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	b := &Broker{client: client, now: time.Now, log: log, cache: map[string]cachedToken{}}
	for _, o := range opts {
		o(b)
	}
	return b
}

// GetToken returns a valid bearer token for the credentials, from cache when
// the entry has more than ExpirySlack of life left, otherwise via one
// exchange. Concurrent misses for the same workspace coalesce into a single
// in-flight exchange.
func (b *Broker) GetToken(ctx context.Context, creds credentials.WorkspaceCredentials) (string, error) {
	if tok, ok := b.cached(creds.Workspace); ok {
		cacheHits.Inc()
		return tok, nil
	}
	v, err, _ := b.group.Do(creds.Workspace, func() (any, error) {
		// A caller queued behind the winning flight finds the fresh entry.
		if tok, ok := b.cached(creds.Workspace); ok {
			return tok, nil
		}
		return b.exchange(ctx, creds)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cache entry for the workspace. Called by the request
// executor after a 401 so the retry runs on a fresh token.
func (b *Broker) Invalidate(workspace string) {
	b.mu.Lock()
	delete(b.cache, workspace)
	b.mu.Unlock()
}

func (b *Broker) cached(workspace string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.cache[workspace]
	if !ok || !e.expiresAt.After(b.now().Add(ExpirySlack)) {
		return "", false
	}
	return e.token, true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

func (b *Broker) exchange(ctx context.Context, creds credentials.WorkspaceCredentials) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.TokenURL,
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		exchanges.WithLabelValues("error").Inc()
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		exchanges.WithLabelValues("error").Inc()
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		exchanges.WithLabelValues("upstream_error").Inc()
		return "", &RequestFailedError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		exchanges.WithLabelValues("error").Inc()
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		exchanges.WithLabelValues("error").Inc()
		return "", fmt.Errorf("token response missing access_token")
	}

	now := b.now()
	expiresAt, err := b.expiry(now, tr)
	if err != nil {
		exchanges.WithLabelValues("error").Inc()
		return "", err
	}

	b.mu.Lock()
	b.cache[creds.Workspace] = cachedToken{token: tr.AccessToken, expiresAt: expiresAt}
	b.mu.Unlock()
	exchanges.WithLabelValues("ok").Inc()
	b.log.Debugw("token exchanged", "workspace", creds.Workspace, "expires_at", expiresAt)
	return tr.AccessToken, nil
}

// expiry derives the absolute expiry instant: expires_in when present, else
// the JWT exp claim (some providers omit expires_in for JWT access tokens).
func (b *Broker) expiry(now time.Time, tr tokenResponse) (time.Time, error) {
	if tr.ExpiresIn > 0 {
		return now.Add(time.Duration(tr.ExpiresIn) * time.Second), nil
	}
	tok, err := jwt.ParseInsecure([]byte(tr.AccessToken))
	if err != nil || tok.Expiration().IsZero() {
		return time.Time{}, fmt.Errorf("token response missing expires_in")
	}
	return tok.Expiration(), nil
}
