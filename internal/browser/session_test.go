package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestXPathLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "正常", want: `"正常"`},
		{name: "double quote", in: `say "hi"`, want: `'say "hi"'`},
		{name: "both quotes", in: `it's "x"`, want: `concat("it's ", '"', "x", '"', "")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := xpathLiteral(tt.in); got != tt.want {
				t.Errorf("xpathLiteral(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextXPath(t *testing.T) {
	t.Parallel()

	want := `//*[not(self::script) and not(self::style) and contains(normalize-space(text()), "社会团体")]`
	if got := textXPath("社会团体"); got != want {
		t.Errorf("textXPath() = %s, want %s", got, want)
	}
}

func TestJSString(t *testing.T) {
	t.Parallel()

	if got := jsString(`input[placeholder='名称']`); got != `"input[placeholder='名称']"` {
		t.Errorf("jsString() = %s", got)
	}
	if got := jsString(`a"b`); got != `"a\"b"` {
		t.Errorf("jsString() = %s", got)
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		o := defaultOptions()
		if o.headless {
			t.Error("default should open a visible window")
		}
		if o.width != 1280 || o.height != 720 {
			t.Errorf("window = %dx%d, want 1280x720", o.width, o.height)
		}
		if !o.ignoreCerts {
			t.Error("certificate errors should be ignored by default")
		}
		if o.userAgent != DefaultUserAgent {
			t.Errorf("userAgent = %q", o.userAgent)
		}
	})

	t.Run("overrides and ignored zero values", func(t *testing.T) {
		t.Parallel()

		o := defaultOptions()
		for _, opt := range []Option{
			WithHeadless(true),
			WithIgnoreCertErrors(false),
			WithWindowSize(0, 0),
			WithUserAgent(""),
			WithActionTimeout(0),
			WithProxyServer("socks5://127.0.0.1:9050"),
			WithCookies(Cookie{Name: "sid", Value: "x", Domain: "example.org"}),
			WithExecPath("/usr/bin/chromium"),
		} {
			opt(&o)
		}
		if !o.headless || o.ignoreCerts {
			t.Errorf("headless=%v ignoreCerts=%v", o.headless, o.ignoreCerts)
		}
		if o.width != 1280 || o.userAgent != DefaultUserAgent || o.actionTimeout != 30*time.Second {
			t.Errorf("zero values overrode defaults: %+v", o)
		}
		if o.proxyServer != "socks5://127.0.0.1:9050" || o.execPath != "/usr/bin/chromium" {
			t.Errorf("options not applied: %+v", o)
		}
		if len(o.cookies) != 1 {
			t.Errorf("cookies = %v", o.cookies)
		}
	})
}

func TestClosedSession(t *testing.T) {
	t.Parallel()

	s := &ChromeSession{opts: defaultOptions(), closed: true}
	if err := s.Navigate(context.Background(), "about:blank"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Navigate after close = %v, want ErrSessionClosed", err)
	}
}
