package util

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/calv06/snag/internal/config"
)

var privateNets []*net.IPNet

func init() {
	cidrs := []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"0.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, _ := net.ParseCIDR(cidr)
		privateNets = append(privateNets, network)
	}
}

// ValidateURL rejects anything the bot should not even hand to an extractor:
// non-HTTP schemes, oversized URLs and hosts that resolve into private or
// link-local ranges.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL is required")
	}
	if len(rawURL) > config.MaxURLLength {
		return fmt.Errorf("URL is too long")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("only HTTP/HTTPS URLs are allowed")
	}

	hostname := strings.ToLower(parsed.Hostname())
	if isPrivateHost(hostname) {
		return fmt.Errorf("private or local URLs are not allowed")
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	for _, network := range privateNets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func isPrivateHost(hostname string) bool {
	if hostname == "" || hostname == "localhost" {
		return true
	}

	ip := net.ParseIP(hostname)
	if ip == nil {
		ip = net.ParseIP(strings.Trim(hostname, "[]"))
	}
	if ip != nil {
		return isPrivateIP(ip)
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return true
	}
	for _, resolved := range ips {
		if isPrivateIP(resolved) {
			return true
		}
	}
	return false
}
