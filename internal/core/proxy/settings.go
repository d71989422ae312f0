package proxy

import (
	"fmt"
	"net/http"
	"net/url"
)

// Settings contains the egress proxy configuration for outbound carrier calls.
type Settings struct {
	Enabled  bool   `mapstructure:"CARRIER_PROXY_ENABLED"`
	Hostname string `mapstructure:"CARRIER_PROXY_HOST"`
	Port     int    `mapstructure:"CARRIER_PROXY_PORT"`
	Username string `mapstructure:"CARRIER_PROXY_USERNAME"`
	Password string `mapstructure:"CARRIER_PROXY_PASSWORD"`
}

// HasProxy returns true if proxy is enabled and configured.
func (p Settings) HasProxy() bool {
	return p.Enabled && p.Hostname != "" && p.Port > 0
}

// HostPort returns the proxy URL without credentials (e.g., "http://egress.internal:3128").
func (p Settings) HostPort() string {
	if !p.HasProxy() {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", p.Hostname, p.Port)
}

// FullURL returns the full proxy URL with credentials.
func (p Settings) FullURL() string {
	if !p.HasProxy() {
		return ""
	}
	if p.Username != "" && p.Password != "" {
		return fmt.Sprintf("http://%s:%s@%s:%d",
			url.QueryEscape(p.Username), url.QueryEscape(p.Password), p.Hostname, p.Port)
	}
	return p.HostPort()
}

// Transport returns a transport that dials through the proxy, or the default
// transport when no proxy is configured.
func (p Settings) Transport() (http.RoundTripper, error) {
	if !p.HasProxy() {
		return http.DefaultTransport, nil
	}

	proxyURL, err := url.Parse(p.FullURL())
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(proxyURL)
	return transport, nil
}
