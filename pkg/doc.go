// Package pkg provides the core libraries shared by the stackbuild backends.
//
// # Overview
//
// A package-management frontend builds source packages by talking to a
// long-lived backend process, one binary per language. Every backend runs
// the same core and differs only in the [backend.Adapter] it is compiled
// with:
//
//  1. [protocol] - session state machine and the stdio, socket and HTTP transports
//  2. [pipeline] - request control flow shared by get_metadata and build
//  3. [manifest] - project manifest loading (TOML, YAML or JSON with comments)
//  4. [config] - field schema, merge policies and per-platform resolution
//  5. [variant] - compiler variants and the variant matrix
//  6. [fingerprint] - input globbing and the BLAKE3 digest
//  7. [executor] - runs the build script in its own process group
//
// # Architecture
//
// Each request flows through the same stages:
//
//	manifest file
//	     ↓
//	[manifest] parse, fresh on every request
//	     ↓
//	[config] resolve for the target platform
//	     ↓
//	[variant] expand compiler variants
//	     ↓
//	[fingerprint] digest matched inputs + resolved config
//	     ↓
//	[backend] metadata or build script
//	     ↓
//	[executor] run, capture output
//
// Nothing outlives a request except the optional files written by
// [debugdir].
//
// # Supporting packages
//
//   - [platform] - platform strings, families and target selectors
//   - [errors] - coded errors with structured detail
//   - [codec] - deterministic CBOR used on the wire and for canonical bytes
//   - [observability] - request, fingerprint and exec hooks
//   - [buildinfo] - version and protocol version
//
// [protocol]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/protocol
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/pipeline
// [manifest]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/manifest
// [config]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/config
// [variant]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/variant
// [fingerprint]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/fingerprint
// [executor]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/executor
// [backend]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/backend
// [backend.Adapter]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/backend#Adapter
// [debugdir]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/debugdir
// [platform]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/platform
// [errors]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/errors
// [codec]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/codec
// [observability]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/buildinfo
package pkg
