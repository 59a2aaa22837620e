// Package logger wraps zap with a global sugared logger, context helpers and
// level parsing. The scenario runner and the CLI log through it; the
// simulation core reports through returned errors and event records instead.
package logger
