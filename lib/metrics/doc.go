// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports Prometheus instrumentation for the ingestion
// queue, the delivery worker, and the spill store.
//
// Each [Metrics] owns its registry, so several loggers in one process
// (or in one test binary) never collide on registration. Every method
// is safe on a nil receiver and does nothing, which lets components
// take a *Metrics without checking whether instrumentation is enabled.
package metrics
