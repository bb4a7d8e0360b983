// Package model defines the data structures shared by the crawler, the job
// pipeline, the report writers and the history database.
//
// The main types are:
//   - Region and FilterSpec: what a crawl job searches for
//   - ListItemSummary and ValidityWindow: what is read from the registry pages
//   - Record: an accepted registry entry
//   - CrawlState: the append-only progress of a running job
//   - JobReport: the outcome of a job, serialized for reports and storage
package model
