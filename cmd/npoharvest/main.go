// Package main provides the entry point for the npoharvest CLI.
//
// npoharvest collects the social organizations of the national registry
// (xxgs.chinanpo.mca.gov.cn) whose validity period reaches a cutoff date,
// one region at a time, and writes them to CSV files.
//
// Usage:
//
//	npoharvest crawl 北京 上海
//	npoharvest crawl --all --batch 2
//	npoharvest history 北京市 --diff
//
// See --help for all available options.
package main

// main is the entry point for npoharvest.
func main() {
	Execute()
}
