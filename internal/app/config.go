package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/vk/teeio-validator/internal/filter"
)

// Confirmer modes besides a socket.io URL.
const (
	ConfirmAuto    = "auto"
	ConfirmConsole = "console"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	CatalogPaths []string // hcl files or directories
	Suites       []string // empty means every enabled suite
	Filters      filter.RegexFilters

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// Emulate runs against the built-in emulator instead of sysfs.
	Emulate   bool
	SysfsRoot string

	// Confirm is "auto", "console" or the URL of a socket.io operator console.
	Confirm string

	NoColor bool
	Verbose bool

	// Command is recorded in the report header.
	Command []string
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.CatalogPaths) == 0 {
		return nil, errors.New("CatalogPaths is a required configuration field and cannot be empty")
	}
	if cfg.Confirm == "" {
		cfg.Confirm = ConfirmAuto
	}
	switch cfg.Confirm {
	case ConfirmAuto, ConfirmConsole:
	default:
		u, err := url.Parse(cfg.Confirm)
		if err != nil || u.Host == "" || !strings.HasPrefix(u.Scheme, "http") && !strings.HasPrefix(u.Scheme, "ws") {
			return nil, fmt.Errorf("invalid confirm mode %q: want 'auto', 'console' or an http(s)/ws(s) URL", cfg.Confirm)
		}
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
