// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logship ships log records to a remote collector without
// ever blocking the caller.
//
// [New] assembles the pipeline from a [config.Config]: an in-memory
// ingestion queue, a durable spill file for records the network cannot
// take, a formatter carrying host and device metadata, and a single
// background delivery worker. The returned [*Logger] is an explicit
// handle; there is no package-level instance.
//
//	cfg, err := config.Load()
//	...
//	logger, err := logship.New(*cfg, slog.Default())
//	...
//	defer logger.Close(5 * time.Second)
//	logger.Log(record.SeverityInfo, "billing", "invoice 42 sent")
//
// [NewHandler] adapts a Logger to [log/slog], so existing slog call
// sites can ship through it.
package logship
