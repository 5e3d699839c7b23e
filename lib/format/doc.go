// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package format renders records into the line the collector ingests.
//
// The delivery worker calls a [Formatter] once per delivery attempt,
// so timestamps reflect the attempt rather than the moment the record
// was produced. [Message] is the standard implementation. Plain mode
// produces space-separated key=value metadata followed by the payload:
//
//	Host=build-07 TraceID=3F2A... DeviceId=8c1e... Timestamp=1760700000000 disk full
//
// JSON mode wraps the same metadata in an "event" envelope. A payload
// that is already valid JSON is embedded as-is; anything else becomes
// a JSON string:
//
//	{"event":{"Host":"build-07","Timestamp":1760700000000,"Message":{"disk":"full"}}}
package format
