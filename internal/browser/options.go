package browser

import "time"

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Cookie is set on the browser before the first navigation.
type Cookie struct {
	Name   string `yaml:"name"`
	Value  string `yaml:"value"`
	Domain string `yaml:"domain"`
}

type options struct {
	headless      bool
	execPath      string
	userAgent     string
	width, height int
	proxyServer   string
	ignoreCerts   bool
	cookies       []Cookie
	userDataDir   string
	actionTimeout time.Duration
	logf          func(string, ...any)
}

func defaultOptions() options {
	return options{
		userAgent:     DefaultUserAgent,
		width:         1280,
		height:        720,
		ignoreCerts:   true,
		actionTimeout: 30 * time.Second,
	}
}

// Option configures a ChromeSession.
type Option func(*options)

// WithHeadless runs Chrome without a window. Challenges cannot be solved by
// an operator in headless mode unless the session is viewed remotely.
func WithHeadless(headless bool) Option {
	return func(o *options) {
		o.headless = headless
	}
}

// WithExecPath sets the Chrome binary. Empty means auto-detect.
func WithExecPath(path string) Option {
	return func(o *options) {
		o.execPath = path
	}
}

// WithUserAgent overrides the user agent.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithWindowSize sets the viewport size.
func WithWindowSize(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithProxyServer routes all browser traffic through proxy,
// e.g. "socks5://127.0.0.1:9050".
func WithProxyServer(proxy string) Option {
	return func(o *options) {
		o.proxyServer = proxy
	}
}

// WithIgnoreCertErrors controls whether TLS certificate errors are ignored.
func WithIgnoreCertErrors(ignore bool) Option {
	return func(o *options) {
		o.ignoreCerts = ignore
	}
}

// WithCookies presets cookies, typically a session obtained after a solved
// challenge in an earlier run.
func WithCookies(cookies ...Cookie) Option {
	return func(o *options) {
		o.cookies = append(o.cookies, cookies...)
	}
}

// WithUserDataDir keeps the browser profile in dir across sessions.
func WithUserDataDir(dir string) Option {
	return func(o *options) {
		o.userDataDir = dir
	}
}

// WithActionTimeout bounds every browser action that has no explicit timeout.
func WithActionTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.actionTimeout = d
		}
	}
}

// WithDebugLog forwards chromedp's protocol log to logf.
func WithDebugLog(logf func(string, ...any)) Option {
	return func(o *options) {
		o.logf = logf
	}
}
