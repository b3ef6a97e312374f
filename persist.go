package xtree

import (
	"context"
	"time"

	"github.com/hupe1980/xtree/distance"
	"github.com/hupe1980/xtree/internal/manifest"
	"github.com/hupe1980/xtree/internal/tree"
)

// Commit makes all changes durable: dirty pages are flushed to the blob
// store, then the manifest pointing at the current root is written. It is a
// no-op for in-memory indexes.
func (idx *Index) Commit(ctx context.Context) (err error) {
	start := time.Now()
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	if idx.blobs == nil {
		return nil
	}

	st := idx.tree.State()
	defer func() {
		idx.metrics.RecordCommit(time.Since(start), err)
		idx.logger.LogCommit(ctx, st.Count, st.Height, err)
	}()

	if err := idx.store.Sync(ctx); err != nil {
		return translateError(err)
	}
	m := &manifest.Manifest{
		FormatVersion: manifest.FormatVersion,
		Dimension:     idx.dim,
		Metric:        idx.tree.Distance().Name(),
		Compression:   idx.compression.String(),
		Settings:      manifestSettings(idx.tree.Settings()),
		Root:          uint32(st.Root),
		Height:        st.Height,
		Count:         st.Count,
		CommittedAt:   time.Now().UTC(),
	}
	return translateError(manifest.Save(ctx, idx.blobs, m, idx.codec))
}

// adoptManifest checks o against a persisted manifest and fills in what the
// caller left unset.
func adoptManifest(m *manifest.Manifest, dim int, o *options) error {
	if m.Dimension != dim {
		return invalidConfig(nil, "dimension %d does not match persisted dimension %d", dim, m.Dimension)
	}

	if o.dist == nil {
		d, ok := distance.ByName(m.Metric)
		if !ok {
			return invalidConfig(nil, "persisted metric %q is not built in; pass it with WithDistance", m.Metric)
		}
		o.dist = d
	} else if o.dist.Name() != m.Metric {
		return invalidConfig(nil, "metric %q does not match persisted metric %q", o.dist.Name(), m.Metric)
	}

	s, err := settingsFromManifest(m.Settings)
	if err != nil {
		return invalidConfig(err, "persisted settings")
	}
	if o.settingsSet && s != o.settings {
		return invalidConfig(nil, "settings %+v do not match persisted settings %+v", o.settings, s)
	}
	o.settings = s
	return nil
}

func manifestSettings(s tree.Settings) manifest.Settings {
	return manifest.Settings{
		MinEntries:         s.MinEntries,
		MaxEntries:         s.MaxEntries,
		Variant:            s.Variant.String(),
		RelativeMinFanout:  s.RelativeMinFanout,
		ReinsertFraction:   s.ReinsertFraction,
		MaxOverlap:         s.MaxOverlap,
		OverlapMetric:      s.OverlapMetric.String(),
		MaxSupernodeBlocks: s.MaxSupernodeBlocks,
	}
}

func settingsFromManifest(ms manifest.Settings) (tree.Settings, error) {
	v, err := tree.ParseVariant(ms.Variant)
	if err != nil {
		return tree.Settings{}, err
	}
	om, err := tree.ParseOverlapMetric(ms.OverlapMetric)
	if err != nil {
		return tree.Settings{}, err
	}
	s := tree.Settings{
		MinEntries:         ms.MinEntries,
		MaxEntries:         ms.MaxEntries,
		Variant:            v,
		RelativeMinFanout:  ms.RelativeMinFanout,
		ReinsertFraction:   ms.ReinsertFraction,
		MaxOverlap:         ms.MaxOverlap,
		OverlapMetric:      om,
		MaxSupernodeBlocks: ms.MaxSupernodeBlocks,
	}
	return s, s.Validate()
}
