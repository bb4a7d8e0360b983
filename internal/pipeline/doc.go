// Package pipeline runs crawl jobs as a sequence of steps.
//
// A job is one FilterSpec. Its pipeline crawls the registry, exports the
// accepted records and writes a summary, each stage being a Step that
// receives the job's report and can modify it. Steps that must also run
// after the job failed or was cancelled, such as writing out partial
// results, implement Finalizer.
//
// BatchProcessor runs one pipeline per region with a concurrency limit
// using errgroup.
package pipeline
