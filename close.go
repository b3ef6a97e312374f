package xtree

import "errors"

// Close releases the page store and the blob store lock. It does not
// commit: changes since the last Commit are lost for persisted indexes.
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.release()
}

func (idx *Index) release() error {
	var errs []error
	if idx.store != nil {
		errs = append(errs, idx.store.Close())
		idx.store = nil
	}
	if idx.lock != nil {
		errs = append(errs, idx.lock.Close())
		idx.lock = nil
	}
	return errors.Join(errs...)
}
