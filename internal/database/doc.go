// Package database stores crawl job history in SQLite.
//
// Every finished job is saved with its counters, its full report as JSON
// and its accepted records. The history command uses it to list past jobs
// and to compare the records of two runs for the same region.
//
// The database is a single file (npoharvest.db) opened through the CGO-free
// modernc.org/sqlite driver in WAL mode.
package database
