package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// IPAllowlist restricts the API to configured client addresses.
type IPAllowlist struct {
	allowed []*net.IPNet
	trusted []*net.IPNet
	logger  *zap.Logger
}

// NewIPAllowlist parses allowed and trusted proxy entries, each either a
// single address or CIDR block. An empty allowed list is an error; callers
// skip the middleware instead.
func NewIPAllowlist(allowed, trustedProxies []string, logger *zap.Logger) (*IPAllowlist, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &IPAllowlist{logger: logger}

	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		network, err := ParseCIDROrIP(entry)
		if err != nil {
			return nil, fmt.Errorf("allowed IPs: %w", err)
		}
		a.allowed = append(a.allowed, network)
	}
	if len(a.allowed) == 0 {
		return nil, fmt.Errorf("no allowed IPs specified")
	}

	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		network, err := ParseCIDROrIP(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
		a.trusted = append(a.trusted, network)
	}

	logger.Info("ip allowlist initialized",
		zap.Int("allowed_ranges", len(a.allowed)),
		zap.Int("trusted_proxies", len(a.trusted)))
	return a, nil
}

// ParseCIDROrIP parses a string as either CIDR notation or a single IP.
func ParseCIDROrIP(s string) (*net.IPNet, error) {
	if _, network, err := net.ParseCIDR(s); err == nil {
		return network, nil
	}

	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP address or CIDR notation: %s", s)
	}
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// Middleware rejects requests from addresses outside the allowlist.
// Health checks always pass so load balancers can probe the service.
func (a *IPAllowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := a.ClientIP(r)
		if !a.Allows(clientIP) {
			a.logger.Warn("access denied",
				zap.String("ip", clientIP),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("user_agent", r.UserAgent()))
			writeError(w, http.StatusForbidden, codeForbidden, "access denied: IP not authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allows reports whether ip falls inside any allowed range.
func (a *IPAllowlist) Allows(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range a.allowed {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

// ClientIP returns the originating client address. Forwarding headers are
// honored only when the direct peer is a trusted proxy; the X-Forwarded-For
// chain is walked right to left and the first untrusted hop wins.
func (a *IPAllowlist) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	if !a.isTrustedProxy(directIP) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !a.isTrustedProxy(hop) {
				return hop
			}
		}
		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return directIP
}

func (a *IPAllowlist) isTrustedProxy(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range a.trusted {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}
