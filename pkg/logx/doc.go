// Package logx configures vexbot's structured logging.
//
// logx.Logger is a small value type over zerolog:
//   - console output stays short (timestamp and file:line caller)
//   - the optional log file is JSON
//   - warnings can be mirrored to a Telegram chat, rate limited
package logx
