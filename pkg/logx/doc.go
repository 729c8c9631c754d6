// Package logx wraps zerolog behind a small structured-logging facade.
//
// The Service owns the root logger and can hot-swap level and sinks via
// Apply() when config reloads; Loggers handed out earlier keep working and
// pick up the new configuration transparently.
package logx
