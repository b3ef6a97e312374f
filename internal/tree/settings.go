package tree

import (
	"fmt"
	"math"
)

// Variant selects the overflow strategy of directory nodes.
type Variant int

const (
	// XTree verifies the overlap of directory splits and falls back to
	// overlap-minimal splits or supernodes.
	XTree Variant = iota
	// RStar always uses the R*-tree topological split.
	RStar
)

func (v Variant) String() string {
	switch v {
	case XTree:
		return "xtree"
	case RStar:
		return "rstar"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant returns the variant with the given name.
func ParseVariant(s string) (Variant, error) {
	for _, v := range []Variant{XTree, RStar} {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown variant %q", ErrInvalidSettings, s)
}

// OverlapMetric defines how the overlap of two split groups is measured.
type OverlapMetric int

const (
	// VolumeOverlap is overlap volume / (volume 1 + volume 2).
	VolumeOverlap OverlapMetric = iota
	// DataOverlap is the fraction of data objects whose entries intersect the
	// overlapping region.
	DataOverlap
)

func (m OverlapMetric) String() string {
	switch m {
	case VolumeOverlap:
		return "volume"
	case DataOverlap:
		return "data"
	default:
		return fmt.Sprintf("OverlapMetric(%d)", int(m))
	}
}

// ParseOverlapMetric returns the metric with the given name.
func ParseOverlapMetric(s string) (OverlapMetric, error) {
	for _, m := range []OverlapMetric{VolumeOverlap, DataOverlap} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown overlap metric %q", ErrInvalidSettings, s)
}

// Settings parameterize the insertion engine. They are immutable once a
// tree is created.
type Settings struct {
	MinEntries int
	MaxEntries int
	Variant    Variant

	// RelativeMinFanout is the fraction of MaxEntries tolerated as minimum
	// group size for overlap-minimal splits.
	RelativeMinFanout float64
	// ReinsertFraction is the fraction of entries forcibly reinserted on the
	// first overflow of a level during one insertion. 0 disables reinsertion.
	ReinsertFraction float64
	// MaxOverlap is the largest overlap fraction a directory split may
	// produce before the X-tree looks for alternatives.
	MaxOverlap    float64
	OverlapMetric OverlapMetric
	// MaxSupernodeBlocks caps supernodes at this many MaxEntries-sized
	// blocks. Once reached, the standard split is forced.
	MaxSupernodeBlocks int
}

// DefaultSettings returns the default configuration.
func DefaultSettings() Settings {
	return Settings{
		MinEntries:         12,
		MaxEntries:         32,
		Variant:            XTree,
		RelativeMinFanout:  0.3,
		ReinsertFraction:   0.3,
		MaxOverlap:         0.2,
		OverlapMetric:      VolumeOverlap,
		MaxSupernodeBlocks: 8,
	}
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	switch {
	case s.MaxEntries < 2:
		return fmt.Errorf("%w: max entries %d < 2", ErrInvalidSettings, s.MaxEntries)
	case s.MaxEntries > math.MaxUint16:
		return fmt.Errorf("%w: max entries %d too large", ErrInvalidSettings, s.MaxEntries)
	case s.MinEntries < 1:
		return fmt.Errorf("%w: min entries %d < 1", ErrInvalidSettings, s.MinEntries)
	case s.MinEntries > s.MaxEntries/2:
		return fmt.Errorf("%w: min entries %d > max entries/2 (%d)", ErrInvalidSettings, s.MinEntries, s.MaxEntries/2)
	case s.RelativeMinFanout < 0 || s.RelativeMinFanout > 1:
		return fmt.Errorf("%w: relative min fanout %v outside [0,1]", ErrInvalidSettings, s.RelativeMinFanout)
	case s.ReinsertFraction < 0 || s.ReinsertFraction >= 1:
		return fmt.Errorf("%w: reinsert fraction %v outside [0,1)", ErrInvalidSettings, s.ReinsertFraction)
	case s.MaxOverlap <= 0 || s.MaxOverlap > 1:
		return fmt.Errorf("%w: max overlap %v outside (0,1]", ErrInvalidSettings, s.MaxOverlap)
	case s.MaxSupernodeBlocks < 1 || s.MaxSupernodeBlocks > math.MaxUint16:
		return fmt.Errorf("%w: max supernode blocks %d outside [1,%d]", ErrInvalidSettings, s.MaxSupernodeBlocks, math.MaxUint16)
	case s.Variant != XTree && s.Variant != RStar:
		return fmt.Errorf("%w: unknown variant %d", ErrInvalidSettings, int(s.Variant))
	case s.OverlapMetric != VolumeOverlap && s.OverlapMetric != DataOverlap:
		return fmt.Errorf("%w: unknown overlap metric %d", ErrInvalidSettings, int(s.OverlapMetric))
	}
	return nil
}

// minFanout is the smallest group an overlap-minimal split may produce.
func (s Settings) minFanout() int {
	return max(1, int(math.Ceil(s.RelativeMinFanout*float64(s.MaxEntries))))
}

// minFill is the smallest legal entry count of a non-root, non-supernode
// node.
func (s Settings) minFill(leaf bool) int {
	if leaf || s.Variant != XTree {
		return s.MinEntries
	}
	return min(s.MinEntries, s.minFanout())
}
