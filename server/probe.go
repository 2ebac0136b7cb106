package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hunt-labs/huntgate/phclient"
)

// DefaultProbeSchedule checks the upstream every five minutes.
const DefaultProbeSchedule = "*/5 * * * *"

const probeViewerQuery = `query Viewer { viewer { user { id } } }`

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// parseCronExpressionUTC parses a standard five-field cron expression.
// Timezone prefixes are rejected; probe schedules are UTC-only.
func parseCronExpressionUTC(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// ProbeResult captures one upstream check outcome.
type ProbeResult struct {
	CheckedAt  time.Time `json:"checked_at"`
	Credential string    `json:"credential"`
	API        string    `json:"api,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// UpstreamProbeConfig configures the background upstream probe.
type UpstreamProbeConfig struct {
	// Schedule is a five-field UTC cron expression
	// (default DefaultProbeSchedule).
	Schedule string

	// CredentialEnv names the token environment variable
	// (default phclient.TokenEnv).
	CredentialEnv string

	// Client, when set, is used to ping the Product Hunt API. Without it
	// the probe only reports credential presence.
	Client phclient.Doer

	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// UpstreamProbe periodically verifies the upstream credential and API
// reachability on a cron schedule, caching the latest result for the
// health and root endpoints.
type UpstreamProbe struct {
	schedule      cron.Schedule
	credentialEnv string
	client        phclient.Doer
	logger        *slog.Logger
	now           func() time.Time

	mu      sync.Mutex
	last    ProbeResult
	hasLast bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewUpstreamProbe creates a probe from the given configuration.
func NewUpstreamProbe(cfg UpstreamProbeConfig) (*UpstreamProbe, error) {
	expr := strings.TrimSpace(cfg.Schedule)
	if expr == "" {
		expr = DefaultProbeSchedule
	}
	schedule, err := parseCronExpressionUTC(expr)
	if err != nil {
		return nil, fmt.Errorf("server: probe schedule: %w", err)
	}

	credentialEnv := strings.TrimSpace(cfg.CredentialEnv)
	if credentialEnv == "" {
		credentialEnv = phclient.TokenEnv
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &UpstreamProbe{
		schedule:      schedule,
		credentialEnv: credentialEnv,
		client:        cfg.Client,
		logger:        logger,
		now:           now,
	}, nil
}

// Start begins probe execution. The first check runs immediately;
// subsequent checks follow the cron schedule.
func (p *UpstreamProbe) Start(ctx context.Context) error {
	if p == nil {
		return errors.New("server: upstream probe is nil")
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.RunOnce(loopCtx)

		for {
			next := p.schedule.Next(p.now().UTC())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-loopCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				p.RunOnce(loopCtx)
			}
		}
	}()

	return nil
}

// Stop terminates probe execution.
func (p *UpstreamProbe) Stop(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one upstream check and caches the result.
func (p *UpstreamProbe) RunOnce(ctx context.Context) ProbeResult {
	result := ProbeResult{
		CheckedAt:  p.now(),
		Credential: "configured",
	}

	if strings.TrimSpace(os.Getenv(p.credentialEnv)) == "" {
		result.Credential = "missing"
		result.Detail = p.credentialEnv + " not set"
	} else if p.client != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if _, err := p.client.Do(probeCtx, probeViewerQuery, nil); err != nil {
			result.API = "unreachable"
			result.Detail = err.Error()
			p.logger.Warn("upstream probe failed", "error", err)
		} else {
			result.API = "reachable"
		}
	}

	p.mu.Lock()
	p.last = result
	p.hasLast = true
	p.mu.Unlock()
	return result
}

// Last returns the most recent probe result, if any check has run.
func (p *UpstreamProbe) Last() (ProbeResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.hasLast
}
