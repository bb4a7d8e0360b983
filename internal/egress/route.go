package egress

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTarget is probed through a proxy before crawling.
const DefaultTarget = "xxgs.chinanpo.mca.gov.cn:443"

// Options selects the egress.
type Options struct {
	// Proxy is a user supplied proxy, see NormalizeProxy.
	Proxy string

	// UseTor starts an embedded Tor daemon. It excludes Proxy.
	UseTor bool

	// TorStartupTimeout bounds the Tor bootstrap.
	TorStartupTimeout time.Duration

	// Target is probed through the proxy. Defaults to DefaultTarget.
	Target string

	// CheckTimeout bounds the proxy probe. Zero skips the probe.
	CheckTimeout time.Duration

	Logger *slog.Logger
}

// Route is an established egress.
type Route struct {
	// ProxyServer is the value for the browser's proxy setting, empty for
	// a direct connection.
	ProxyServer string

	tor *EmbeddedTor
}

// Direct reports whether the route uses no proxy.
func (r *Route) Direct() bool {
	return r.ProxyServer == ""
}

// Close releases the route, stopping the Tor daemon if one was started.
func (r *Route) Close() error {
	if r.tor == nil {
		return nil
	}
	return r.tor.Stop()
}

// Setup establishes the egress described by opts.
func Setup(ctx context.Context, opts Options) (*Route, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	target := opts.Target
	if target == "" {
		target = DefaultTarget
	}

	switch {
	case opts.UseTor:
		logger.Info("starting embedded Tor daemon (this may take 1-3 minutes)")
		tor := NewEmbeddedTor(WithStartupTimeout(opts.TorStartupTimeout))
		if err := tor.Start(ctx); err != nil {
			return nil, err
		}
		proxyURL, err := tor.ProxyURL()
		if err != nil {
			_ = tor.Stop() //nolint:errcheck // already failing
			return nil, err
		}
		logger.Info("embedded Tor daemon ready", "socks", tor.SocksAddr())
		return &Route{ProxyServer: proxyURL, tor: tor}, nil

	case opts.Proxy != "":
		u, err := NormalizeProxy(opts.Proxy)
		if err != nil {
			return nil, err
		}
		if u.User != nil {
			logger.Warn("browser proxies do not take credentials from the URL; they will be ignored", "proxy", u.String())
		}
		if opts.CheckTimeout > 0 {
			if err := Check(ctx, u, target, opts.CheckTimeout); err != nil {
				return nil, fmt.Errorf("proxy check failed: %w", err)
			}
			logger.Debug("proxy check passed", "proxy", u.String(), "target", target)
		}
		return &Route{ProxyServer: ServerString(u)}, nil

	default:
		return &Route{}, nil
	}
}
