// Package logx wraps zerolog behind a small structured-logging API.
//
// The zero Logger value is a safe no-op. Loggers created from a Service
// stay live across Service.Apply calls, so log level and sinks can be
// changed at runtime without re-plumbing loggers through the app.
package logx
