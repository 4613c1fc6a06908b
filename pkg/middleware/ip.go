package middleware

import (
	"net/http"
	"strings"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// IPSource defines the source for client IP addresses.
type IPSource string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field.
	IPSourceRemoteAddr IPSource = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header.
	IPSourceXForwardedFor IPSource = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header.
	IPSourceXRealIP IPSource = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the
	// configuration.
	IPSourceCustomHeader IPSource = "custom_header"
)

// IPConfig defines configuration for IP extraction.
type IPConfig struct {
	// Source specifies where to extract the client IP from.
	Source IPSource

	// CustomHeader is the name of the header to use when Source is
	// IPSourceCustomHeader.
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like
	// X-Forwarded-For. If false, RemoteAddr is used for all sources.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration.
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// ClientIP returns a before unit that extracts the client IP from the request
// per config and stores it in the mcontext container, where rate limiting and
// logging pick it up. A nil config uses DefaultIPConfig.
func ClientIP(config *IPConfig) chain.Unit {
	if config == nil {
		config = DefaultIPConfig()
	}
	return chain.BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
		mcontext.WithClientIP(r.Context(), extractClientIP(r, config))
		return nil
	})
}

// extractClientIP extracts the client IP from the request based on the
// configuration.
func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string

	switch config.Source {
	case IPSourceXForwardedFor:
		ip = extractIPFromXForwardedFor(r)
	case IPSourceXRealIP:
		ip = r.Header.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = r.Header.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = r.RemoteAddr
	default:
		ip = extractIPFromXForwardedFor(r)
	}

	// If proxy headers are not trusted or yielded nothing, fall back to
	// RemoteAddr.
	if !config.TrustProxy || ip == "" {
		ip = r.RemoteAddr
	}

	return cleanIP(ip)
}

// extractIPFromXForwardedFor extracts the client IP from the X-Forwarded-For
// header. The header contains a comma-separated list of IPs, with the
// leftmost being the original client.
func extractIPFromXForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	ips := strings.Split(xff, ",")
	if len(ips) > 0 {
		return strings.TrimSpace(ips[0])
	}
	return ""
}

// cleanIP removes the port from an IP address if present.
func cleanIP(ip string) string {
	// IPv6 addresses with ports are formatted as [IPv6]:port.
	if strings.HasPrefix(ip, "[") {
		end := strings.LastIndex(ip, "]")
		if end > 0 {
			if end+1 < len(ip) && ip[end+1] == ':' {
				return ip[:end+1]
			}
			return ip
		}
	}

	// An IPv6 address without brackets contains multiple colons and carries
	// no port.
	if strings.Count(ip, ":") > 1 {
		return ip
	}

	// IPv4 addresses with ports are formatted as IPv4:port.
	end := strings.LastIndex(ip, ":")
	if end > 0 {
		return ip[:end]
	}

	return ip
}
