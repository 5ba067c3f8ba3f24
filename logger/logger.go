// Package logger provides adapters for popular logger libraries to work with grove's Logger interface.
//
// The adapters allow you to use your existing logger with grove without writing boilerplate.
// Note that the standard library's slog.Logger already implements grove.Logger directly.
//
// Example with zap:
//
//	import (
//	    "grove"
//	    "grove/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    tree := grove.New[string, string](grove.Ordered[string](),
//	        grove.WithLogger(logger.NewZap(zapLogger)),
//	    )
//	    _ = tree
//	}
package logger
