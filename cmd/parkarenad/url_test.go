package main

import "testing"

func TestListenerURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		scheme  string
		address string
		want    string
	}{
		"port_only":      {address: ":8080", want: "http://localhost:8080"},
		"ipv4_any":       {address: "0.0.0.0:9000", want: "http://localhost:9000"},
		"ipv4_loopback":  {address: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		"ipv6_any":       {address: "[::]:8080", want: "http://localhost:8080"},
		"ipv6_explicit":  {address: "[2001:db8::1]:8080", want: "http://[2001:db8::1]:8080"},
		"websocket":      {scheme: "ws", address: ":8080", want: "ws://localhost:8080"},
		"no_port_at_all": {address: "arena.local", want: "http://arena.local"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := listenerURL(tc.scheme, tc.address); got != tc.want {
				t.Fatalf("listenerURL(%q, %q) = %q, want %q", tc.scheme, tc.address, got, tc.want)
			}
		})
	}
}

func TestNormaliseHostPortEmpty(t *testing.T) {
	t.Parallel()

	if got := normaliseHostPort("  "); got != "localhost" {
		t.Fatalf("expected localhost for a blank address, got %q", got)
	}
}
