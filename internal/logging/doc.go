// Package logging writes structured JSON logs for a run.
//
// A [Logger] is created once per run by the orchestrator, pointed at
// {workspace}/logs/{run-id}.log, and handed down to the scheduler. Child
// loggers add persistent attributes:
//
//	logger, err := logging.NewLogger(dir, runID, "INFO")
//	roundLog := logger.WithRun(runID).WithRound(3)
//	roundLog.WithRole("architect").Info("turn completed", "cost", 0.05)
//
// # Trace Correlation
//
// [Logger.Ctx] binds the logger to a context. When that context carries a
// valid OpenTelemetry span, every entry gains trace_id and span_id so log
// lines can be joined with exported round and turn spans.
//
// # Levels
//
// DEBUG, INFO, WARN and ERROR are accepted case-insensitively; anything else
// falls back to INFO. See [ParseLevel] and [ValidLevels].
//
// # Thread Safety
//
// Loggers and their children share one handler and file and are safe for
// concurrent use.
package logging
