// Package logger provides the structured logging interface used across
// fvdownloader.
//
// It wraps zerolog behind a small Logger interface so that packages can
// take a Logger as a dependency and tests can swap in NewNopLogger or a
// capturing TestLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("collection", url)
//	log.InfoWithFields("Pagination finished", map[string]interface{}{
//	    "records": 42,
//	})
//
// Console output goes to stderr, keeping stdout for the summary table. When Logging.File is set, JSON lines are also appended to
// that file.
package logger
