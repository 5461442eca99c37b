package detection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReplaceIsIdempotent(t *testing.T) {
	set := []Detection{
		Box{ClassID: 1, X: 1, Y: 2, Width: 3, Height: 4},
		Keypoints{Points: []Point{{X: 5, Y: 6}}},
	}

	once := NewStore()
	once.Replace(set)

	twice := NewStore()
	twice.Replace(set)
	twice.Replace(set)

	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestStoreDoesNotAliasInput(t *testing.T) {
	pts := []Point{{X: 1, Y: 1}}
	set := []Detection{Keypoints{Points: pts}}

	s := NewStore()
	s.Replace(set)

	pts[0].X = 99
	set[0] = Box{}

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, Keypoints{Points: []Point{{X: 1, Y: 1}}}, snap[0])
}

func TestStoreSnapshotSurvivesReplace(t *testing.T) {
	s := NewStore()
	s.Replace([]Detection{Box{ClassID: 1}})
	old := s.Snapshot()

	s.Replace([]Detection{Box{ClassID: 2}, Box{ClassID: 3}})

	assert.Equal(t, []Detection{Box{ClassID: 1}}, old, "previous snapshot must stay intact")
	assert.Len(t, s.Snapshot(), 2)
}

func TestStoreClearAndClose(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Snapshot())

	require.True(t, s.Replace([]Detection{Box{ClassID: 1}}))
	s.Clear()
	assert.Empty(t, s.Snapshot())
	assert.False(t, s.Closed())

	require.True(t, s.Replace([]Detection{Box{ClassID: 1}}))
	s.Close()
	s.Close()
	assert.True(t, s.Closed())
	assert.Empty(t, s.Snapshot())

	assert.False(t, s.Replace([]Detection{Box{ClassID: 2}}), "replace after close is a no-op")
	assert.Empty(t, s.Snapshot())
}

func TestStoreReopen(t *testing.T) {
	s := NewStore()
	s.Reopen()
	assert.Equal(t, uint64(0), s.Version(), "reopening an open store is a no-op")

	require.True(t, s.Replace([]Detection{Box{ClassID: 1}}))
	s.Close()
	s.Reopen()
	assert.False(t, s.Closed())
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, uint64(3), s.Version())

	require.True(t, s.Replace([]Detection{Box{ClassID: 2}}))
	assert.Equal(t, []Detection{Box{ClassID: 2}}, s.Snapshot())
}

func TestStoreVersion(t *testing.T) {
	s := NewStore()
	assert.Equal(t, uint64(0), s.Version())
	s.Replace(nil)
	s.Replace(nil)
	s.Clear()
	assert.Equal(t, uint64(3), s.Version())
}

func TestStoreConcurrentReadersSeeWholeSets(t *testing.T) {
	s := NewStore()
	sets := [][]Detection{
		{Box{ClassID: 1}, Box{ClassID: 1}},
		{Box{ClassID: 2}, Box{ClassID: 2}, Box{ClassID: 2}},
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.Replace(sets[(i+w)%2])
			}
		}(w)
	}

	torn := make(chan []Detection, 1)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				snap := s.Snapshot()
				if len(snap) == 0 {
					continue
				}
				first := snap[0].(Box).ClassID
				for _, d := range snap {
					if d.(Box).ClassID != first {
						select {
						case torn <- snap:
						default:
						}
						return
					}
				}
				if (first == 1 && len(snap) != 2) || (first == 2 && len(snap) != 3) {
					select {
					case torn <- snap:
					default:
					}
					return
				}
			}
		}()
	}
	wg.Wait()

	select {
	case snap := <-torn:
		t.Fatalf("observed a partial set: %v", snap)
	default:
	}
}
