// Package logx configures taskbot's structured logging.
//
// logx.Logger wraps zerolog so call sites stay short:
//   - console output is human readable (short timestamp + file:line)
//   - file output is JSON lines
//   - an optional Telegram log chat receives WARN+ lines, rate limited
package logx
