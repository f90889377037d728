// Package history stores finished runs and their test cases in SQLite.
//
// The store is a downstream listener: a run's outcome never depends on
// whether it could be recorded here.
package history
