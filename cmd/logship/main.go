// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bureau-foundation/logship/lib/record"
	"github.com/bureau-foundation/logship/lib/version"
	"github.com/bureau-foundation/logship/logship"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code: the child's code when a command
// was given, otherwise 0 on success and 1 on error.
func run(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logship: %v\n", err)
		return 2
	}
	if opts.showHelp {
		printHelp(os.Stderr, opts.flagSet)
		return 0
	}
	if opts.showVersion {
		fmt.Printf("logship %s\n", version.Info())
		return 0
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := newCommandLogger(level)

	cfg, err := loadConfig(opts, os.Getenv)
	if err != nil {
		logger.Error("loading configuration failed", "error", err)
		return 1
	}
	flushTimeout, err := cfg.Delivery.FlushTimeoutDuration()
	if err != nil {
		logger.Error("invalid flush timeout", "error", err)
		return 1
	}

	shipper, err := logship.New(*cfg, logger)
	if err != nil {
		logger.Error("starting log shipping failed", "error", err)
		return 1
	}

	var metricsServer *http.Server
	if cfg.Metrics.Address != "" {
		metricsServer = serveMetrics(cfg.Metrics.Address, shipper, logger)
	}

	var code int
	if len(opts.command) == 0 {
		code = shipStdin(shipper, opts, logger)
	} else {
		code = runChild(shipper, opts, logger)
	}

	if err := shipper.Close(flushTimeout); err != nil {
		logger.Warn("flush incomplete, remaining lines were spilled or dropped", "error", err)
	}
	if metricsServer != nil {
		shutdownContext, cancel := context.WithTimeout(context.Background(), time.Second)
		metricsServer.Shutdown(shutdownContext)
		cancel()
	}
	return code
}

func serveMetrics(address string, shipper *logship.Logger, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", shipper.Metrics().Handler())
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "address", address, "error", err)
		}
	}()
	logger.Info("serving metrics", "address", address)
	return server
}

// shipStdin ships stdin until EOF or a termination signal.
func shipStdin(shipper *logship.Logger, opts *options, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	type result struct {
		stats lineStats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := shipLines(os.Stdin, nil, shipper.Log, opts.severity, opts.label, logger)
		done <- result{stats, err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil {
			logger.Error("reading stdin failed", "error", outcome.err)
			return 1
		}
		logger.Debug("stdin closed", "shipped", outcome.stats.shipped, "dropped", outcome.stats.dropped)
		return 0
	case <-ctx.Done():
		logger.Info("interrupted, flushing")
		return 130
	}
}

// runChild runs the command, teeing and shipping its output, and
// returns its exit code.
func runChild(shipper *logship.Logger, opts *options, logger *slog.Logger) int {
	child := exec.Command(opts.command[0], opts.command[1:]...)
	child.Stdin = os.Stdin
	stdout, err := child.StdoutPipe()
	if err != nil {
		logger.Error("creating stdout pipe failed", "error", err)
		return 1
	}
	stderr, err := child.StderrPipe()
	if err != nil {
		logger.Error("creating stderr pipe failed", "error", err)
		return 1
	}

	if err := child.Start(); err != nil {
		logger.Error("starting child failed", "command", opts.command[0], "error", err)
		return 126
	}

	signals := make(chan os.Signal, 4)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer signal.Stop(signals)
	go forwardSignals(signals, child.Process)

	// Both pipes must reach EOF before Wait closes them.
	var pumps sync.WaitGroup
	pump := func(name string, source io.Reader, echo io.Writer, severity int) {
		defer pumps.Done()
		stats, err := shipLines(source, echo, shipper.Log, severity, opts.label, logger)
		if err != nil {
			logger.Warn("reading child output failed", "stream", name, "error", err)
		}
		logger.Debug("child stream closed", "stream", name, "shipped", stats.shipped, "dropped", stats.dropped)
	}
	pumps.Add(2)
	go pump("stdout", stdout, os.Stdout, opts.severity)
	go pump("stderr", stderr, os.Stderr, record.SeverityError)
	pumps.Wait()

	if err := child.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitCode(exitErr)
		}
		logger.Error("waiting for child failed", "error", err)
		return 1
	}
	return 0
}

// forwardSignals relays signals to the child until the channel is
// closed. Delivery errors mean the child already exited.
func forwardSignals(signals <-chan os.Signal, process *os.Process) {
	for sig := range signals {
		if sysSig, ok := sig.(syscall.Signal); ok {
			_ = process.Signal(sysSig)
		}
	}
}

// exitCode follows the shell convention of 128+N for a child killed
// by signal N.
func exitCode(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
