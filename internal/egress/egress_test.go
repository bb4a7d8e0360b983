package egress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func TestNormalizeProxy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantServer string
		wantErr    bool
	}{
		{name: "bare host:port is socks5", input: "127.0.0.1:9050", wantServer: "socks5://127.0.0.1:9050"},
		{name: "socks5 URL", input: "socks5://proxy.local:1080", wantServer: "socks5://proxy.local:1080"},
		{name: "socks5h maps to socks5 for the browser", input: "socks5h://proxy.local:1080", wantServer: "socks5://proxy.local:1080"},
		{name: "http URL with credentials", input: "http://u:p@10.0.0.1:3128", wantServer: "http://10.0.0.1:3128"},
		{name: "empty", input: " ", wantErr: true},
		{name: "missing port", input: "socks5://proxy.local", wantErr: true},
		{name: "port out of range", input: "127.0.0.1:70000", wantErr: true},
		{name: "unsupported scheme", input: "ftp://proxy.local:21", wantErr: true},
		{name: "missing host", input: ":9050", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := NormalizeProxy(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProxy) {
					t.Errorf("NormalizeProxy(%q) error = %v, want ErrInvalidProxy", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeProxy(%q) unexpected error: %v", tt.input, err)
			}
			if got := ServerString(u); got != tt.wantServer {
				t.Errorf("ServerString() = %q, want %q", got, tt.wantServer)
			}
		})
	}
}

// fakeSOCKS5 serves the SOCKS5 handshake without authentication and answers
// every CONNECT with reply.
func fakeSOCKS5(t *testing.T, reply byte) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveSOCKS5(conn, reply)
		}
	}()
	return listener.Addr().String()
}

func serveSOCKS5(conn net.Conn, reply byte) {
	defer conn.Close()

	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return
	}
	if _, err := io.ReadFull(conn, make([]byte, greeting[1])); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	var addrLen int
	switch header[3] {
	case 0x01:
		addrLen = 4
	case 0x04:
		addrLen = 16
	case 0x03:
		l := make([]byte, 1)
		if _, err := io.ReadFull(conn, l); err != nil {
			return
		}
		addrLen = int(l[0])
	}
	if _, err := io.ReadFull(conn, make([]byte, addrLen+2)); err != nil {
		return
	}
	_, _ = conn.Write([]byte{0x05, reply, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
}

func closedAddr(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return addr
}

func TestCheck(t *testing.T) {
	t.Parallel()

	t.Run("socks5 proxy reaches target", func(t *testing.T) {
		t.Parallel()

		u, err := NormalizeProxy(fakeSOCKS5(t, 0x00))
		if err != nil {
			t.Fatalf("NormalizeProxy: %v", err)
		}
		if err := Check(context.Background(), u, "registry.example:443", 2*time.Second); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})

	t.Run("socks5 proxy refuses target", func(t *testing.T) {
		t.Parallel()

		u, err := NormalizeProxy(fakeSOCKS5(t, 0x05))
		if err != nil {
			t.Fatalf("NormalizeProxy: %v", err)
		}
		err = Check(context.Background(), u, "registry.example:443", 2*time.Second)
		if !errors.Is(err, ErrTargetUnreachable) {
			t.Errorf("Check() error = %v, want ErrTargetUnreachable", err)
		}
	})

	t.Run("dead socks5 proxy", func(t *testing.T) {
		t.Parallel()

		u, err := NormalizeProxy(closedAddr(t))
		if err != nil {
			t.Fatalf("NormalizeProxy: %v", err)
		}
		err = Check(context.Background(), u, "registry.example:443", 2*time.Second)
		if !errors.Is(err, ErrProxyUnreachable) {
			t.Errorf("Check() error = %v, want ErrProxyUnreachable", err)
		}
	})

	t.Run("http proxy reachability", func(t *testing.T) {
		t.Parallel()

		live, err := NormalizeProxy("http://" + fakeSOCKS5(t, 0x00))
		if err != nil {
			t.Fatalf("NormalizeProxy: %v", err)
		}
		if err := Check(context.Background(), live, DefaultTarget, 2*time.Second); err != nil {
			t.Errorf("Check() on live HTTP proxy error = %v", err)
		}

		dead, err := NormalizeProxy("http://" + closedAddr(t))
		if err != nil {
			t.Fatalf("NormalizeProxy: %v", err)
		}
		if err := Check(context.Background(), dead, DefaultTarget, 2*time.Second); !errors.Is(err, ErrProxyUnreachable) {
			t.Errorf("Check() on dead HTTP proxy error = %v, want ErrProxyUnreachable", err)
		}
	})
}

func TestSetup(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("direct", func(t *testing.T) {
		t.Parallel()

		r, err := Setup(context.Background(), Options{Logger: logger})
		if err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !r.Direct() {
			t.Errorf("expected direct route, got %q", r.ProxyServer)
		}
		if err := r.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("checked proxy", func(t *testing.T) {
		t.Parallel()

		addr := fakeSOCKS5(t, 0x00)
		r, err := Setup(context.Background(), Options{Proxy: addr, CheckTimeout: 2 * time.Second, Logger: logger})
		if err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if r.ProxyServer != "socks5://"+addr {
			t.Errorf("ProxyServer = %q", r.ProxyServer)
		}
	})

	t.Run("invalid proxy", func(t *testing.T) {
		t.Parallel()

		if _, err := Setup(context.Background(), Options{Proxy: "ftp://x:1", Logger: logger}); !errors.Is(err, ErrInvalidProxy) {
			t.Errorf("Setup() error = %v, want ErrInvalidProxy", err)
		}
	})
}

func TestEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("defaults and options", func(t *testing.T) {
		t.Parallel()

		if e := NewEmbeddedTor(); e.startupTimeout != 3*time.Minute {
			t.Errorf("expected default timeout 3m, got %v", e.startupTimeout)
		}
		if e := NewEmbeddedTor(WithStartupTimeout(time.Minute)); e.startupTimeout != time.Minute {
			t.Errorf("expected timeout 1m, got %v", e.startupTimeout)
		}
	})

	t.Run("unstarted instance", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.IsRunning() || e.SocksAddr() != "" {
			t.Error("unstarted daemon reports as running")
		}
		if _, err := e.ProxyURL(); !errors.Is(err, ErrTorNotRunning) {
			t.Errorf("ProxyURL() error = %v, want ErrTorNotRunning", err)
		}
		if err := e.Stop(); err != nil {
			t.Errorf("Stop() on unstarted instance: %v", err)
		}
	})
}
