package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type probeDoer struct {
	err   error
	calls int
	query string
}

func (d *probeDoer) Do(_ context.Context, query string, _ map[string]any) (json.RawMessage, error) {
	d.calls++
	d.query = query
	if d.err != nil {
		return nil, d.err
	}
	return json.RawMessage(`{"viewer":{"user":{"id":"1"}}}`), nil
}

func TestParseCronExpressionUTC(t *testing.T) {
	cases := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 12 * * 1", false},
		{"", true},
		{"not a cron", true},
		{"CRON_TZ=America/New_York 0 12 * * *", true},
		{"TZ=UTC 0 12 * * *", true},
		{"* * * * * *", true}, // six fields, seconds not supported
	}
	for _, tc := range cases {
		_, err := parseCronExpressionUTC(tc.expr)
		if tc.wantErr && err == nil {
			t.Errorf("parseCronExpressionUTC(%q): expected error", tc.expr)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("parseCronExpressionUTC(%q): unexpected error: %v", tc.expr, err)
		}
	}
}

func TestProbeDefaultsSchedule(t *testing.T) {
	p, err := NewUpstreamProbe(UpstreamProbeConfig{})
	if err != nil {
		t.Fatalf("NewUpstreamProbe: %v", err)
	}
	if p == nil {
		t.Fatal("probe is nil")
	}
	if _, ok := p.Last(); ok {
		t.Error("Last reported a result before any check ran")
	}
}

func TestProbeCredentialMissing(t *testing.T) {
	t.Setenv("PRODUCT_HUNT_TOKEN", "")

	doer := &probeDoer{}
	p, err := NewUpstreamProbe(UpstreamProbeConfig{Client: doer})
	if err != nil {
		t.Fatalf("NewUpstreamProbe: %v", err)
	}

	result := p.RunOnce(context.Background())
	if result.Credential != "missing" {
		t.Errorf("credential = %q, want missing", result.Credential)
	}
	if doer.calls != 0 {
		t.Errorf("API pinged %d times without a credential, want 0", doer.calls)
	}

	last, ok := p.Last()
	if !ok {
		t.Fatal("Last returned no result after RunOnce")
	}
	if last.Credential != "missing" {
		t.Errorf("cached credential = %q, want missing", last.Credential)
	}
}

func TestProbeAPIReachable(t *testing.T) {
	t.Setenv("PRODUCT_HUNT_TOKEN", "tok")

	doer := &probeDoer{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p, err := NewUpstreamProbe(UpstreamProbeConfig{
		Client: doer,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewUpstreamProbe: %v", err)
	}

	result := p.RunOnce(context.Background())
	if result.Credential != "configured" {
		t.Errorf("credential = %q, want configured", result.Credential)
	}
	if result.API != "reachable" {
		t.Errorf("api = %q, want reachable", result.API)
	}
	if !result.CheckedAt.Equal(now) {
		t.Errorf("checked_at = %v, want %v", result.CheckedAt, now)
	}
	if doer.calls != 1 {
		t.Errorf("API pinged %d times, want 1", doer.calls)
	}
}

func TestProbeAPIUnreachable(t *testing.T) {
	t.Setenv("PRODUCT_HUNT_TOKEN", "tok")

	doer := &probeDoer{err: errors.New("dial tcp: connection refused")}
	p, err := NewUpstreamProbe(UpstreamProbeConfig{Client: doer})
	if err != nil {
		t.Fatalf("NewUpstreamProbe: %v", err)
	}

	result := p.RunOnce(context.Background())
	if result.API != "unreachable" {
		t.Errorf("api = %q, want unreachable", result.API)
	}
	if result.Detail == "" {
		t.Error("detail is empty, want the upstream error")
	}
}

func TestProbeStartStop(t *testing.T) {
	t.Setenv("PRODUCT_HUNT_TOKEN", "tok")

	doer := &probeDoer{}
	p, err := NewUpstreamProbe(UpstreamProbeConfig{Client: doer})
	if err != nil {
		t.Fatalf("NewUpstreamProbe: %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Start runs an immediate check before the first scheduled tick.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := p.Last(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no probe result after Start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Idempotent start.
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Stop on a stopped probe is a no-op.
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestProbeInvalidSchedule(t *testing.T) {
	if _, err := NewUpstreamProbe(UpstreamProbeConfig{Schedule: "bogus"}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
