// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the hang guards shared by logship tests.
// [RequireReceive] and [RequireClosed] are the only places tests wait
// on the wall clock; everything else synchronizes on channels.
package testutil
