// Package logger provides structured logging for the reloom client
// using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields.
//
// # Usage
//
//	log := logger.WithComponent("querycache")
//	log.Info("entry invalidated", logger.Fields("cache_key", key))
package logger
