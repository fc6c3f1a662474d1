// Package preflight runs the environment checks behind `msgindex doctor`:
// free disk space, write access to the index directory, the open-file
// limit and the state of the index write lock.
//
//	checker := preflight.New(preflight.WithVerbose(true))
//	results := checker.RunAll(ctx, cfg.Index.Path)
//	checker.PrintResults(results)
//	if checker.HasCriticalFailures(results) {
//	    os.Exit(1)
//	}
package preflight
