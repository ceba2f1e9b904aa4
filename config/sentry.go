package config

// SentryConfig enables Sentry reporting of failed subcentral solves. An empty
// DSN keeps monitoring disabled.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}
