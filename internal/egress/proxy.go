package egress

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// NormalizeProxy turns user input into a proxy URL the browser accepts.
// A bare "host:port" is taken as a SOCKS5 proxy.
func NormalizeProxy(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidProxy
	}
	if !strings.Contains(raw, "://") {
		raw = "socks5://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}
	switch u.Scheme {
	case "socks5", "socks5h", "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil || host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, u.Host)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return nil, fmt.Errorf("%w: port %q", ErrInvalidProxy, port)
	}
	return u, nil
}

// ServerString formats u for Chrome's --proxy-server flag, which takes no
// credentials.
func ServerString(u *url.URL) string {
	scheme := u.Scheme
	if scheme == "socks5h" {
		scheme = "socks5"
	}
	return scheme + "://" + u.Host
}

// Check probes the proxy. For SOCKS proxies a connection to target
// ("host:port") is opened through the proxy; HTTP proxies are only checked
// for reachability.
func Check(ctx context.Context, u *url.URL, target string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	direct := &net.Dialer{Timeout: timeout}

	if u.Scheme == "http" || u.Scheme == "https" {
		conn, err := direct.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrProxyUnreachable, u.Host, err)
		}
		return conn.Close()
	}

	// x/net/proxy registers "socks5" and "socks5h" for FromURL.
	dialer, err := proxy.FromURL(u, direct)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return fmt.Errorf("%w: dialer does not support contexts", ErrInvalidProxy)
	}

	conn, err := cd.DialContext(ctx, "tcp", target)
	if err != nil {
		// Tell a dead proxy from a proxy that cannot reach the target.
		probe, perr := direct.DialContext(ctx, "tcp", u.Host)
		if perr != nil {
			return fmt.Errorf("%w: %s: %w", ErrProxyUnreachable, u.Host, perr)
		}
		_ = probe.Close() //nolint:errcheck // probe only
		return fmt.Errorf("%w: %s: %w", ErrTargetUnreachable, target, err)
	}
	return conn.Close()
}
