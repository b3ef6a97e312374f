package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"time"

	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/codec"
)

// Name is the blob name of the manifest.
const Name = "MANIFEST"

// FormatVersion is the current manifest format.
const FormatVersion = 1

// Settings mirrors the tree configuration.
type Settings struct {
	MinEntries         int     `json:"min_entries"`
	MaxEntries         int     `json:"max_entries"`
	Variant            string  `json:"variant"`
	RelativeMinFanout  float64 `json:"relative_min_fanout"`
	ReinsertFraction   float64 `json:"reinsert_fraction"`
	MaxOverlap         float64 `json:"max_overlap"`
	OverlapMetric      string  `json:"overlap_metric"`
	MaxSupernodeBlocks int     `json:"max_supernode_blocks"`
}

// Manifest describes a committed index.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	Dimension     int       `json:"dimension"`
	Metric        string    `json:"metric"`
	Compression   string    `json:"compression"`
	Settings      Settings  `json:"settings"`
	Root          uint32    `json:"root"`
	Height        int       `json:"height"`
	Count         uint64    `json:"count"`
	CommittedAt   time.Time `json:"committed_at"`
}

// Save encodes m with c and writes it to bs.
func Save(ctx context.Context, bs blobstore.BlobStore, m *Manifest, c codec.Codec) error {
	if c == nil {
		c = codec.Default
	}
	body, err := c.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	data := make([]byte, 0, len(c.Name())+10+len(body))
	data = append(data, c.Name()...)
	data = append(data, ' ')
	data = fmt.Appendf(data, "%08x", crc32.ChecksumIEEE(body))
	data = append(data, '\n')
	data = append(data, body...)

	if err := bs.Put(ctx, Name, data); err != nil {
		return fmt.Errorf("manifest: write: %w", err)
	}
	return nil
}

// Load reads the manifest from bs.
func Load(ctx context.Context, bs blobstore.BlobStore) (*Manifest, error) {
	data, err := bs.Get(ctx, Name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("manifest: read: %w", err)
	}

	header, body, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	name, sum, ok := bytes.Cut(header, []byte{' '})
	if !ok {
		return nil, fmt.Errorf("%w: missing checksum", ErrCorrupt)
	}
	want, err := strconv.ParseUint(string(sum), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bad checksum %q", ErrCorrupt, sum)
	}
	if got := crc32.ChecksumIEEE(body); got != uint32(want) {
		return nil, fmt.Errorf("%w: checksum mismatch (%08x != %08x)", ErrCorrupt, got, want)
	}
	c, ok := codec.ByName(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, name)
	}

	var m Manifest
	if err := c.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, m.FormatVersion)
	}
	return &m, nil
}
