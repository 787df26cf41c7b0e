// Package syncer periodically mirrors a source git repository to a
// target remote. Each run clones the source into the local workspace
// (or pulls if it already exists), enables git-lfs on the workspace if
// the extension is available, and pushes the configured branch to the
// 'target' remote with an access token embedded in the push URL.
// Runs are serialised so they never overlap, a run that takes longer
// than the interval delays the next tick.
//
// The actual git object transfer is delegated to the git binary which
// must be available on PATH.
//
// # Logging:
//
// package takes slog reference for logging and prints logs up to 'trace' level
//
// Example:
//
//	loggerLevel  = new(slog.LevelVar)
//	levelStrings = map[string]slog.Level{
//		"trace": slog.Level(-8),
//		"debug": slog.LevelDebug,
//		"info":  slog.LevelInfo,
//		"warn":  slog.LevelWarn,
//		"error": slog.LevelError,
//	}
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//		Level: loggerLevel,
//	}))
//	loggerLevel.Set(levelStrings["trace"])
//
//	s, err := syncer.New(conf, nil, logger.With("logger", "repo-sync"))
//	if err != nil {
//		panic(err)
//	}
package syncer
