// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/logship/lib/config"
	"github.com/bureau-foundation/logship/lib/record"
)

// options is the parsed command line.
type options struct {
	configPath     string
	mode           string
	address        string
	tls            bool
	token          string
	endpoint       string
	spillPath      string
	label          string
	severity       int
	flushTimeout   time.Duration
	metricsAddress string
	json           bool
	verbose        bool
	showVersion    bool
	showHelp       bool

	// changed holds the names of flags given explicitly; only those
	// override the configuration file.
	changed map[string]bool

	// command is the child command line; empty means ship stdin.
	command []string

	flagSet *pflag.FlagSet
}

// parseArgs parses logship's flags. Parsing stops at the first
// non-flag argument or at "--"; everything after is the child command.
func parseArgs(args []string) (*options, error) {
	opts := &options{changed: make(map[string]bool)}

	flagSet := pflag.NewFlagSet("logship", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the config file (default: $LOGSHIP_CONFIG)")
	flagSet.StringVar(&opts.mode, "mode", "", "transport mode: stream, relay or http")
	flagSet.StringVar(&opts.address, "address", "", "collector host:port (stream) or relay host:port (relay)")
	flagSet.BoolVar(&opts.tls, "tls", false, "use TLS for stream and relay connections")
	flagSet.StringVar(&opts.token, "token", "", "routing token (UUID), required for relay and http")
	flagSet.StringVar(&opts.endpoint, "endpoint", "", "collector base URL for http mode")
	flagSet.StringVar(&opts.spillPath, "spill-path", "", "file holding records the collector could not take")
	flagSet.StringVar(&opts.label, "label", "", "label attached to every shipped line")
	flagSet.IntVar(&opts.severity, "severity", record.SeverityInfo, "severity of stdin (or child stdout) lines; child stderr is always Error")
	flagSet.DurationVar(&opts.flushTimeout, "flush-timeout", 5*time.Second, "how long to wait for queued lines at exit (0 waits indefinitely)")
	flagSet.StringVar(&opts.metricsAddress, "metrics-address", "", "serve Prometheus metrics on this address")
	flagSet.BoolVar(&opts.json, "json", false, "wrap shipped lines in a JSON event envelope")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log delivery diagnostics at debug level")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.showHelp, "help", "h", false, "show help")
	opts.flagSet = flagSet

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.showHelp = true
			return opts, nil
		}
		return nil, err
	}
	flagSet.Visit(func(flag *pflag.Flag) { opts.changed[flag.Name] = true })

	opts.command = flagSet.Args()
	if opts.flushTimeout < 0 {
		return nil, fmt.Errorf("--flush-timeout must not be negative")
	}
	return opts, nil
}

// loadConfig reads the config file named by --config or
// LOGSHIP_CONFIG, falling back to defaults when neither is set, and
// applies explicit flag overrides.
func loadConfig(opts *options, getenv func(string) string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case getenv(config.EnvironmentVariable) != "":
		cfg, err = config.LoadFile(getenv(config.EnvironmentVariable))
	default:
		cfg = config.Default()
		cfg.ExpandVariables()
	}
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts *options) {
	if opts.changed["mode"] {
		cfg.Transport.Mode = opts.mode
	}
	if opts.changed["address"] {
		cfg.Transport.Address = opts.address
	}
	if opts.changed["tls"] {
		cfg.Transport.TLS = opts.tls
	}
	if opts.changed["token"] {
		cfg.Transport.Token = opts.token
	}
	if opts.changed["endpoint"] {
		cfg.Transport.Endpoint = opts.endpoint
	}
	if opts.changed["spill-path"] {
		cfg.Spill.Path = opts.spillPath
		cfg.ExpandVariables()
	}
	if opts.changed["flush-timeout"] {
		cfg.Delivery.FlushTimeout = opts.flushTimeout.String()
	}
	if opts.changed["metrics-address"] {
		cfg.Metrics.Address = opts.metricsAddress
	}
	if opts.changed["json"] {
		cfg.Format.JSON = opts.json
	}
}

func printHelp(output io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(output, `logship ships log lines to a remote collector, spilling to disk when
the collector is unreachable.

Usage:
  logship [flags]                      ship stdin, one record per line
  logship [flags] [--] command [args]  run command, ship its output

Examples:
  # Ship a service's journal over TLS
  journalctl -f -u api | logship --address logs.example:6514 --tls --label api

  # Wrap a batch job; stderr lines ship at Error severity
  logship --config /etc/logship.yaml -- ./nightly-backup.sh --full

Flags:
%s`, flagSet.FlagUsages())
}
