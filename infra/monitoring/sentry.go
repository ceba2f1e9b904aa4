// Package monitoring reports scheduling failures to Sentry.
package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/power2u/flexheat/config"
	coremon "github.com/power2u/flexheat/core/monitoring"
)

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation. An empty DSN disables reporting.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if len(tags) == 0 {
		s.hub.CaptureException(err)
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		s.hub.CaptureException(err)
	})
}

// Recover reports a panic of the calling goroutine and re-raises it.
func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
