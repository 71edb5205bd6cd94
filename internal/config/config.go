// Package config holds the CLI configuration types.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Role represents the user's chosen role (host or guest).
type Role string

const (
	RoleHost  Role = "host"  // creates the offer and starts rematches
	RoleGuest Role = "guest" // answers an offer
)

// Defaults used when a flag or environment variable is not set.
const (
	DefaultBaseURL = "http://localhost:8787/"
	DefaultUIAddr  = "127.0.0.1:8787"
	DefaultQRSize  = 512
)

// DefaultSTUNServers mirrors the transport defaults.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config stores all parameters gathered from flags, environment variables or
// the interactive prompts.
type Config struct {
	Role Role

	STUNServers     []string
	IncludeLoopback bool // gather loopback candidates too (same-machine play)

	BaseURL string // page the share link points at
	UIAddr  string // local display server address; empty disables it

	QRSize int    // PNG edge length in pixels
	QRPath string // Host/Guest: also write the share QR code to this PNG file

	Link      string   // Guest: the host's invitation (link, code or JSON)
	ScanFiles []string // image files to scan for the peer's QR code
	Clipboard bool     // copy the share link to the clipboard

	Debug bool
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		STUNServers: append([]string(nil), DefaultSTUNServers...),
		BaseURL:     DefaultBaseURL,
		UIAddr:      DefaultUIAddr,
		QRSize:      DefaultQRSize,
	}
}

// Validate checks the configuration before anything is started.
func (c *Config) Validate() error {
	var errs []error

	switch c.Role {
	case RoleHost, RoleGuest:
	default:
		errs = append(errs, fmt.Errorf("invalid role %q: must be %q or %q", c.Role, RoleHost, RoleGuest))
	}

	for _, s := range c.STUNServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "stuns:") {
			errs = append(errs, fmt.Errorf("invalid STUN server %q: must start with stun: or stuns:", s))
		}
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("invalid base URL %q: must be an absolute http(s) URL", c.BaseURL))
	}

	if c.UIAddr != "" {
		if _, port, err := net.SplitHostPort(c.UIAddr); err != nil || port == "" {
			errs = append(errs, fmt.Errorf("invalid display address %q: must be host:port", c.UIAddr))
		}
	}

	if c.QRSize < 64 || c.QRSize > 4096 {
		errs = append(errs, fmt.Errorf("invalid QR size %d: must be 64 ~ 4096", c.QRSize))
	}

	if c.Role == RoleHost && c.Link != "" {
		errs = append(errs, errors.New("an invitation link can only be used when joining"))
	}

	return errors.Join(errs...)
}
