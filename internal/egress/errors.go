package egress

import "errors"

var (
	// ErrInvalidProxy is returned when a proxy string cannot be understood.
	// Accepted forms are "host:port" (SOCKS5) and URLs with a socks5,
	// socks5h, http or https scheme.
	ErrInvalidProxy = errors.New("invalid proxy: expected host:port or a socks5/http URL")

	// ErrProxyUnreachable is returned when no connection to the proxy
	// itself can be made.
	ErrProxyUnreachable = errors.New("cannot connect to proxy")

	// ErrTargetUnreachable is returned when a SOCKS proxy accepts the
	// connection but cannot reach the target through it.
	ErrTargetUnreachable = errors.New("proxy cannot reach target")

	// ErrTorNotRunning is returned when the embedded Tor daemon is used
	// before Start succeeded.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)
