// Package logging provides structured logging utilities for inboxfleet.
//
// All packages log through log/slog. This package builds the process logger
// from configuration and keeps attribute names consistent across the codebase.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "registry.add")
//	logger.Info("account registered",
//	    logging.UserHash(email),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - Account emails are hashed at info level so log files can be shared
//   - Tokens are never logged directly, only their length via SanitizeToken
package logging
