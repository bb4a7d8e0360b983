package config

import (
	"fmt"
	"strings"

	"github.com/nao1215/npoharvest/internal/browser"
	"github.com/nao1215/npoharvest/internal/challenge"
	"github.com/nao1215/npoharvest/internal/crawler"
	"github.com/nao1215/npoharvest/internal/validity"
)

// File represents the structure of the .npoharvest configuration file.
//
// Site, Timing and Challenge start from the built-in defaults; only the keys
// present in the file replace them. Scalar settings left empty keep the
// value already in the Config.
type File struct {
	Keyword     string   `yaml:"keyword,omitempty"`
	Cutoff      string   `yaml:"cutoff,omitempty"`
	OutputDir   string   `yaml:"output_dir,omitempty"`
	Headless    *bool    `yaml:"headless,omitempty"`
	IgnoreCerts *bool    `yaml:"ignore_cert_errors,omitempty"`
	BrowserPath string   `yaml:"browser_path,omitempty"`
	UserAgent   string   `yaml:"user_agent,omitempty"`
	Proxy       string   `yaml:"proxy,omitempty"`
	ProfileDir  string   `yaml:"profile_dir,omitempty"`
	BatchSize   int      `yaml:"batch_size,omitempty"`
	MaxPages    int      `yaml:"max_pages,omitempty"`
	PaceScale   *float64 `yaml:"pace_scale,omitempty"`

	// Cookies are preset in every browser session, typically a session
	// cookie obtained after solving a challenge by hand.
	Cookies []browser.Cookie `yaml:"cookies,omitempty"`

	Site      crawler.Site         `yaml:"site"`
	Timing    crawler.Timing       `yaml:"timing"`
	Challenge challenge.Indicators `yaml:"challenge"`
}

// newFile returns a File holding the built-in defaults.
func newFile() File {
	return File{
		Site:      crawler.DefaultSite(),
		Timing:    crawler.DefaultTiming(),
		Challenge: challenge.DefaultIndicators(),
	}
}

// Apply copies the settings present in the file into cfg.
func (f *File) Apply(cfg *Config) error {
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		cfg.Keyword = kw
	}
	if f.Cutoff != "" {
		cutoff, err := validity.ParseDate(f.Cutoff)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCutoff, err)
		}
		cfg.Cutoff = cutoff
	}
	if f.OutputDir != "" {
		cfg.OutputDir = f.OutputDir
	}
	if f.Headless != nil {
		cfg.Headless = *f.Headless
	}
	if f.IgnoreCerts != nil {
		cfg.IgnoreCertErrors = *f.IgnoreCerts
	}
	if f.BrowserPath != "" {
		cfg.BrowserPath = f.BrowserPath
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.Proxy != "" {
		cfg.Proxy = f.Proxy
	}
	if f.ProfileDir != "" {
		cfg.ProfileDir = f.ProfileDir
	}
	if f.BatchSize != 0 {
		cfg.BatchSize = f.BatchSize
	}
	if f.MaxPages != 0 {
		cfg.MaxPages = f.MaxPages
	}
	if f.PaceScale != nil {
		cfg.PaceScale = *f.PaceScale
	}
	if len(f.Cookies) > 0 {
		cfg.Cookies = append(cfg.Cookies, f.Cookies...)
	}

	cfg.Site = f.Site
	cfg.Timing = f.Timing
	cfg.Indicators = f.Challenge
	return nil
}
