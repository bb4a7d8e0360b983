// Package config provides configuration structures and utilities for
// npoharvest: crawl defaults, the optional .npoharvest YAML file and the
// XDG directories used for history and output.
//
// Precedence is defaults, then the configuration file, then command line
// flags.
package config
