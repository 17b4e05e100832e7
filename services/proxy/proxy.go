package proxy

import (
	stderrors "errors"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var errMissingPort = stderrors.New("proxy address needs host and port")

// badPorts are service ports that never host an open proxy
var badPorts = map[int]bool{
	22:   true, // SSH
	23:   true, // Telnet
	25:   true, // SMTP
	53:   true, // DNS
	110:  true, // POP3
	143:  true, // IMAP
	993:  true, // IMAPS
	995:  true, // POP3S
	3306: true, // MySQL
	3389: true, // RDP
	5432: true, // PostgreSQL
}

// ParseProxyURL parses an explicitly configured proxy. A bare host:port is
// treated as an HTTP proxy.
func ParseProxyURL(raw, defaultScheme string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = defaultScheme + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" || u.Port() == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: errMissingPort}
	}
	return u, nil
}

// parseProxyText parses a remote proxy list: one entry per line, blank lines
// and # comments ignored. Entries that fail parseProxyLine are skipped.
func parseProxyText(body, defaultScheme string) (proxies []*url.URL, skipped int) {
	seen := make(map[string]bool)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u := parseProxyLine(line, defaultScheme)
		if u == nil {
			skipped++
			continue
		}
		if seen[u.String()] {
			continue
		}
		seen[u.String()] = true
		proxies = append(proxies, u)
	}
	return proxies, skipped
}

// parseProxyLine accepts "scheme://host:port" or "IP:PORT" followed by
// optional annotations. Bare addresses must be public IPv4 addresses on a
// plausible proxy port.
func parseProxyLine(line, defaultScheme string) *url.URL {
	if idx := strings.IndexAny(line, " \t\r"); idx != -1 {
		line = line[:idx]
	}
	if len(line) < 7 { // minimum "1.1.1.1:1"
		return nil
	}
	if strings.Contains(line, "://") {
		u, err := ParseProxyURL(line, defaultScheme)
		if err != nil {
			return nil
		}
		return u
	}

	host, portStr, err := net.SplitHostPort(line)
	if err != nil {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !isValidPublicIP(ip) {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 80 || port > 65000 || badPorts[port] {
		return nil
	}
	return &url.URL{Scheme: defaultScheme, Host: net.JoinHostPort(host, portStr)}
}

// isValidPublicIP rejects private, loopback, link-local, multicast and
// reserved IPv4 ranges
func isValidPublicIP(ip net.IP) bool {
	ipv4 := ip.To4()
	if ipv4 == nil {
		return false
	}

	if ipv4[0] == 0 || // 0.0.0.0/8
		ipv4[0] == 127 || // loopback
		ipv4[0] == 10 || // 10.0.0.0/8
		(ipv4[0] == 172 && ipv4[1] >= 16 && ipv4[1] <= 31) || // 172.16.0.0/12
		(ipv4[0] == 192 && ipv4[1] == 168) || // 192.168.0.0/16
		(ipv4[0] == 169 && ipv4[1] == 254) || // link-local
		ipv4[0] >= 224 { // multicast and reserved
		return false
	}

	// network and broadcast addresses
	return ipv4[3] != 0 && ipv4[3] != 255
}
