// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the logship binary.
//
// [Version], [GitCommit] and [BuildTime] are injected with -ldflags -X.
// When GitCommit is not injected, the VCS revision recorded by the Go
// toolchain (runtime/debug build info) is used instead.
package version
