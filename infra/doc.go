// Package infra holds the adapters around the scheduling core: the sqlite
// store, the input bundle, metrics sinks, Sentry monitoring, the zerolog
// logger and the MQTT dispatch publisher. Core packages never import them.
package infra
