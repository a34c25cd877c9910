package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/teeio-validator/internal/app"
	"github.com/vk/teeio-validator/internal/filter"
)

// Process exit codes.
const (
	ExitFailed     = 1
	ExitUsage      = 2
	ExitStructural = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("teeio-validator", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
teeio-validator - runs TEE-IO validation suites (PCIe/CXL IDE, CXL TSP, SPDM, TDISP).

Usage:
  teeio-validator [options] [CATALOG_PATH...]

Arguments:
  CATALOG_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Exit codes:
  0 every result passed, 1 a result failed, 2 usage error, 3 run aborted.

Options:
`)
		flagSet.PrintDefaults()
	}

	var catalogs, suites stringList
	var filters filter.RegexFilters
	flagSet.Var(&catalogs, "catalog", "Path to a catalog file or directory. Repeatable.")
	flagSet.Var(&catalogs, "c", "Path to a catalog file or directory (shorthand).")
	flagSet.Var(&suites, "suite", "Suite to run. Repeatable or comma separated; default all enabled suites.")
	flagSet.Var(&filters.MustMatch, "run", "Regex over suite/configuration/topology/Class.ID; only matching cases run. Repeatable.")
	flagSet.Var(&filters.MustNotMatch, "skip", "Regex over suite/configuration/topology/Class.ID; matching cases are skipped. Repeatable.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health and progress server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	emulateFlag := flagSet.Bool("emulate", false, "Run against the built-in device emulator instead of sysfs.")
	sysfsFlag := flagSet.String("sysfs-root", "", "Root of the PCI devices tree. Defaults to /sys/bus/pci/devices.")
	confirmFlag := flagSet.String("confirm", app.ConfirmAuto, "Operator confirmation: 'auto', 'console' or a socket.io URL.")
	noColorFlag := flagSet.Bool("no-color", false, "Disable coloured output.")
	verboseFlag := flagSet.Bool("v", false, "Print passing assertions too.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	paths := append([]string(catalogs), flagSet.Args()...)
	if len(paths) == 0 {
		slog.Debug("No catalog path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		CatalogPaths:    paths,
		Suites:          suites,
		Filters:         filters,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		Emulate:         *emulateFlag,
		SysfsRoot:       *sysfsFlag,
		Confirm:         *confirmFlag,
		NoColor:         *noColorFlag,
		Verbose:         *verboseFlag,
		Command:         append([]string{"teeio-validator"}, args...),
	})
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "catalogs", config.CatalogPaths)
	return config, false, nil
}
