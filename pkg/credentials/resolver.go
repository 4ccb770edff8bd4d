package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"tryit/pkg/config"
)

// ErrNotFound signals that a source has no credentials for the workspace and
// the next source in the chain should be tried.
var ErrNotFound = errors.New("credentials not found")

// NotFoundError is returned when every source has been exhausted.
type NotFoundError struct {
	Workspace string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no credentials found for workspace %q", e.Workspace)
}

// Source yields credentials for a workspace, or ErrNotFound to pass the
// lookup along the chain.
type Source interface {
	Name() string
	Resolve(ctx context.Context, workspace string) (WorkspaceCredentials, error)
}

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tryit_credential_resolutions_total",
	Help: "Credential resolutions by source and outcome.",
}, []string{"source", "outcome"})

// Chain tries sources in order until one yields credentials. Provider-backed
// sources sit before static ones so rotated credentials win without a
// redeploy.
type Chain struct {
	sources []Source
	cfg     config.Config
	log     *zap.SugaredLogger
}

func NewChain(cfg config.Config, log *zap.SugaredLogger, sources ...Source) *Chain {
	return &Chain{sources: sources, cfg: cfg, log: log}
}

func (c *Chain) Name() string { return "chain" }

// Resolve walks the chain. A source error other than ErrNotFound is treated
// as a miss as well: source-level failures are soft and must never surface.
func (c *Chain) Resolve(ctx context.Context, workspace string) (WorkspaceCredentials, error) {
	for _, s := range c.sources {
		creds, err := s.Resolve(ctx, workspace)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				c.log.Warnw("credential source failed", "source", s.Name(), "workspace", workspace, "err", err)
			}
			resolutions.WithLabelValues(s.Name(), "miss").Inc()
			continue
		}
		if !creds.Complete() {
			resolutions.WithLabelValues(s.Name(), "incomplete").Inc()
			continue
		}
		resolutions.WithLabelValues(s.Name(), "hit").Inc()
		return c.withDefaults(creds), nil
	}
	return WorkspaceCredentials{}, &NotFoundError{Workspace: workspace}
}

// withDefaults fills non-secret fields from global configuration. Flow ids
// stay empty when unset; callers treat empty as "no substitution available".
func (c *Chain) withDefaults(creds WorkspaceCredentials) WorkspaceCredentials {
	if creds.TokenURL == "" {
		creds.TokenURL = c.cfg.TokenURL
	}
	if creds.TokenURL == "" {
		creds.TokenURL = config.DefaultTokenURL
	}
	if creds.APIBaseURL == "" {
		creds.APIBaseURL = c.cfg.APIBaseURL
	}
	if creds.APIBaseURL == "" {
		creds.APIBaseURL = config.DefaultAPIBaseURL
	}
	if creds.FlowIDs.Nerv == "" {
		creds.FlowIDs.Nerv = c.cfg.FlowIDNerv
	}
	if creds.FlowIDs.Recurring == "" {
		creds.FlowIDs.Recurring = c.cfg.FlowIDRecurring
	}
	return creds
}
