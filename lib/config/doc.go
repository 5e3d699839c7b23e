// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads logship configuration.
//
// Configuration is loaded from a single file named by either the
// LOGSHIP_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path. A file
// whose name ends in .json or .jsonc is read as JSON with comments;
// anything else is YAML.
//
// Values from the file are merged over [Default]. Variable expansion
// is performed on path fields after loading: ${HOME} and
// ${VAR:-default} patterns are expanded. No other environment
// variables override config values; command-line flags are the only
// overrides, applied by the caller.
//
// Durations are written as Go duration strings ("250ms", "5s").
package config
