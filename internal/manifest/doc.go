// Package manifest reads and writes the MANIFEST blob that describes a
// persisted index: its configuration and the location of the root page.
//
// # Format
//
// The blob is a one-line header followed by the encoded Manifest:
//
//	<codec name> <crc32 of body, 8 hex digits>\n
//	<body>
//
// The codec name makes the body self-describing, so a manifest written with
// one codec can be read by a process configured with another. The checksum
// is CRC32-IEEE of the body.
//
// # Commit Protocol
//
// Pages are flushed before the manifest is written, and the manifest is a
// single blob Put. Stores that implement Put atomically (local rename, S3,
// MinIO) therefore never expose a manifest that points at missing pages.
package manifest
