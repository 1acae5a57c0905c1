//go:build linux

package shmkv

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// openTestTable opens a Table on a segment name unique to this test process
// and test name, so parallel `go test` runs never collide under /dev/shm,
// and registers cleanup to close and unlink it.
func openTestTable(t *testing.T, backend Backend) *Table {
	t.Helper()

	// Subtest names contain "/", which is not allowed inside a segment name.
	name := fmt.Sprintf("/shmkv_test_%d_%s", os.Getpid(), strings.ReplaceAll(t.Name(), "/", "_"))

	tbl, err := Open(name, backend)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = tbl.Close()
		_ = Unlink(name)
	})

	return tbl
}

func TestScenarioBasic(t *testing.T) {
	for _, backend := range []Backend{BackendRWLock, BackendMutex} {
		t.Run(backend.String(), func(t *testing.T) {
			tbl := openTestTable(t, backend)

			require.NoError(t, tbl.Add(1, []byte("a")))
			require.NoError(t, tbl.Add(2, []byte("b")))

			v, err := tbl.Get(1)
			require.NoError(t, err)
			require.Equal(t, []byte("a"), v)

			v, err = tbl.Get(2)
			require.NoError(t, err)
			require.Equal(t, []byte("b"), v)

			count, err := tbl.Count()
			require.NoError(t, err)
			require.EqualValues(t, 2, count)
		})
	}
}

func TestScenarioDuplicate(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	require.NoError(t, tbl.Add(1, []byte("a")))
	require.ErrorIs(t, tbl.Add(1, []byte("b")), ErrDuplicate)

	v, err := tbl.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), v)
}

func TestScenarioUpsertUpdate(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	require.NoError(t, tbl.Upsert(1, []byte("a")))
	require.NoError(t, tbl.Upsert(1, []byte("b")))

	v, err := tbl.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), v)

	require.ErrorIs(t, tbl.Update(2, []byte("x")), ErrNotFound)
}

func TestScenarioTombstoneReuse(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	const n = 1000

	for i := int32(0); i < n; i++ {
		require.NoError(t, tbl.Add(i, []byte("v")))
	}

	for i := int32(0); i < n; i++ {
		require.NoError(t, tbl.Remove(i))
	}

	for i := int32(0); i < n; i++ {
		require.NoError(t, tbl.Add(i, []byte("v2")))
	}

	count, err := tbl.Count()
	require.NoError(t, err)
	require.EqualValues(t, n, count)

	lf, err := tbl.LoadFactor()
	require.NoError(t, err)
	require.InDelta(t, float64(n)/float64(Capacity), lf, 1e-9)
}

func TestScenarioOverflow(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	for i := int32(0); i < MaxLive; i++ {
		require.NoError(t, tbl.Add(i, nil))
	}

	require.ErrorIs(t, tbl.Add(MaxLive, nil), ErrNoSpace)
}

func TestValueLengthGate(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	oversized := make([]byte, ValueCap)

	require.ErrorIs(t, tbl.Add(1, oversized), ErrNoSpace)
	require.ErrorIs(t, tbl.Update(1, oversized), ErrNoSpace)
	require.ErrorIs(t, tbl.Upsert(1, oversized), ErrNoSpace)

	_, err := tbl.Get(1)
	require.ErrorIs(t, err, ErrNotFound, "a rejected oversized Add must not have modified state")
}

func TestRemoveIdempotence(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	require.NoError(t, tbl.Add(1, []byte("a")))
	require.NoError(t, tbl.Remove(1))
	require.ErrorIs(t, tbl.Remove(1), ErrNotFound)

	ok, err := tbl.Contains(1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchGetSnapshotExcludesTombstones(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	require.NoError(t, tbl.Add(1, []byte("a")))
	require.NoError(t, tbl.Add(2, []byte("b")))
	require.NoError(t, tbl.Remove(1))

	snap, n, err := tbl.BatchGet()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, map[int32][]byte{2: []byte("b")}, snap)
}

func TestBatchUpdateSkipsAbsentAndOversized(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	require.NoError(t, tbl.Add(1, []byte("a")))

	n, err := tbl.BatchUpdate(map[int32][]byte{
		1: []byte("updated"),
		2: []byte("absent"),
		3: make([]byte, ValueCap),
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	v, err := tbl.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("updated"), v)
}

func TestClearDoesNotResetHashSeed(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	require.NoError(t, tbl.Add(1, []byte("a")))

	seedBefore := readHeaderHashSeed(tbl.seg.data)
	require.NoError(t, tbl.Clear())
	seedAfter := readHeaderHashSeed(tbl.seg.data)

	require.Equal(t, seedBefore, seedAfter)

	count, err := tbl.Count()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestStatsReportsProbeDistances(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	for i := int32(0); i < 50; i++ {
		require.NoError(t, tbl.Add(i, nil))
	}

	stats, err := tbl.Stats()
	require.NoError(t, err)
	require.EqualValues(t, Capacity, stats.CapacityTotal)
	require.EqualValues(t, 50, stats.Live)
	require.Greater(t, stats.AvgProbeDistance, 0.0)
	require.GreaterOrEqual(t, stats.MaxProbeDistance, 1)
}

func TestCrossProcessVisibility(t *testing.T) {
	name := fmt.Sprintf("/shmkv_test_xproc_%d", os.Getpid())
	t.Cleanup(func() { _ = Unlink(name) })

	a, err := Open(name, BackendRWLock)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Add(7001, []byte("hello")))

	// A second handle within the same process attaches to the same
	// underlying segment exactly as a second process would: it did not
	// create it, so it takes the attacher path and busy-waits on
	// initialized, then observes everything the creator published.
	b, err := Open(name, BackendRWLock)
	require.NoError(t, err)
	defer b.Close()

	v, err := b.Get(7001)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
}

func TestCloseIsIdempotent(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	require.NoError(t, tbl.Close())
	require.NoError(t, tbl.Close())

	_, err := tbl.Get(1)
	require.ErrorIs(t, err, ErrClosed)
}
