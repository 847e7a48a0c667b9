package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseCIDROrIP(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "10.0.0.0/8", want: "10.0.0.0/8"},
		{in: "192.168.1.5", want: "192.168.1.5/32"},
		{in: "2001:db8::1", want: "2001:db8::1/128"},
		{in: "not-an-ip", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			network, err := ParseCIDROrIP(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, network.String())
		})
	}
}

func TestNewIPAllowlistRequiresEntries(t *testing.T) {
	_, err := NewIPAllowlist([]string{" ", ""}, nil, zap.NewNop())
	require.Error(t, err)

	_, err = NewIPAllowlist([]string{"10.0.0.1"}, []string{"bad"}, zap.NewNop())
	require.Error(t, err)
}

func TestClientIP(t *testing.T) {
	a, err := NewIPAllowlist([]string{"10.0.0.0/8"}, []string{"172.16.0.0/12"}, zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{name: "direct", remote: "10.1.2.3:5555", want: "10.1.2.3"},
		{name: "untrusted peer ignores headers", remote: "203.0.113.9:5555", xff: "10.1.2.3", want: "203.0.113.9"},
		{name: "trusted peer uses forwarded client", remote: "172.16.0.2:443", xff: "10.1.2.3", want: "10.1.2.3"},
		{name: "chain walks past trusted hops", remote: "172.16.0.2:443", xff: "203.0.113.9, 10.1.2.3, 172.16.0.9", want: "10.1.2.3"},
		{name: "all hops trusted falls back to first", remote: "172.16.0.2:443", xff: "172.16.0.7, 172.16.0.9", want: "172.16.0.7"},
		{name: "real ip header", remote: "172.16.0.2:443", realIP: "10.9.9.9", want: "10.9.9.9"},
		{name: "no port", remote: "10.1.2.3", want: "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sources", http.NoBody)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, a.ClientIP(req))
		})
	}
}

func TestIPAllowlistMiddleware(t *testing.T) {
	h := newRouter(t, Options{
		Searcher:       &fakeSearcher{},
		AllowedIPs:     []string{"10.0.0.0/8"},
		TrustedProxies: []string{"172.16.0.1"},
	})

	serve := func(path, remote, xff string) int {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, serve("/api/sources", "10.0.0.5:1234", ""))
	assert.Equal(t, http.StatusForbidden, serve("/api/sources", "203.0.113.9:1234", ""))
	assert.Equal(t, http.StatusOK, serve("/api/sources", "172.16.0.1:1234", "10.0.0.5"))
	assert.Equal(t, http.StatusForbidden, serve("/api/sources", "172.16.0.1:1234", "203.0.113.9"))
	assert.Equal(t, http.StatusForbidden, serve("/api/sources", "203.0.113.9:1234", "10.0.0.5"))
	assert.Equal(t, http.StatusOK, serve(healthPath, "203.0.113.9:1234", ""))
}
