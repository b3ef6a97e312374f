package manifest

import "errors"

var (
	// ErrNotFound is returned by Load when no manifest was committed yet.
	ErrNotFound = errors.New("manifest: not found")

	// ErrCorrupt is returned for manifests that cannot be decoded or whose
	// checksum does not match.
	ErrCorrupt = errors.New("manifest: corrupt")
)
