package relation

import (
	"testing"

	"github.com/hupe1980/xtree/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()

	p := spatial.Point{1, 2}
	m.Put(7, p)
	p[0] = 99

	got, err := m.Resolve(7)
	require.NoError(t, err)
	assert.Equal(t, spatial.Point{1, 2}, got, "Put stores a copy")
	assert.Equal(t, 1, m.Len())

	_, err = m.Resolve(8)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, m.Delete(7))
	assert.False(t, m.Delete(7))
	assert.Zero(t, m.Len())
}

func TestFunc(t *testing.T) {
	var r Relation = Func(func(id uint64) (spatial.Point, error) {
		return spatial.Point{float64(id)}, nil
	})
	got, err := r.Resolve(3)
	require.NoError(t, err)
	assert.Equal(t, spatial.Point{3}, got)
}
