// Package logx configures massmsg's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - Optional file output JSON-structured
//
// Per-recipient delivery outcomes are only observable through these logs,
// so the wrapper is part of the broadcast contract, not just decoration.
package logx
