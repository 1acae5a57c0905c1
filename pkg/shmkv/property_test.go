//go:build linux

package shmkv

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPropertyRoundTripAgainstOracle replays a random sequence of add/
// update/upsert/remove/get operations against both the real table and an
// in-memory oracle map, asserting agreement after every step. This mirrors
// the generate-and-compare shape of the example pack's
// state_model_property_test.go harness, scaled down to this table's op
// vocabulary.
func TestPropertyRoundTripAgainstOracle(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	oracle := map[int32][]byte{}
	rng := rand.NewPCG(1, 2)
	r := rand.New(rng)

	const steps = 2000

	for step := 0; step < steps; step++ {
		key := int32(r.IntN(300)) - 150

		switch r.IntN(4) {
		case 0: // add
			value := randValue(r)
			err := tbl.Add(key, value)

			if _, present := oracle[key]; present {
				require.ErrorIs(t, err, ErrDuplicate)
			} else {
				require.NoError(t, err)
				oracle[key] = value
			}
		case 1: // update
			value := randValue(r)
			err := tbl.Update(key, value)

			if _, present := oracle[key]; present {
				require.NoError(t, err)
				oracle[key] = value
			} else {
				require.ErrorIs(t, err, ErrNotFound)
			}
		case 2: // upsert
			value := randValue(r)
			require.NoError(t, tbl.Upsert(key, value))
			oracle[key] = value
		case 3: // remove
			err := tbl.Remove(key)

			if _, present := oracle[key]; present {
				require.NoError(t, err)
				delete(oracle, key)
			} else {
				require.ErrorIs(t, err, ErrNotFound)
			}
		}

		// P1/P2: get and contains must agree with the oracle at every step.
		if want, present := oracle[key]; present {
			got, err := tbl.Get(key)
			require.NoError(t, err)
			require.Equal(t, want, got)

			ok, err := tbl.Contains(key)
			require.NoError(t, err)
			require.True(t, ok)
		} else {
			_, err := tbl.Get(key)
			require.ErrorIs(t, err, ErrNotFound)

			ok, err := tbl.Contains(key)
			require.NoError(t, err)
			require.False(t, ok)
		}

		// Keep the oracle well under MaxLive so Add never spuriously hits
		// ErrNoSpace mid-sequence; that path is covered by
		// TestScenarioOverflow instead.
		if len(oracle) > 200 {
			for k := range oracle {
				require.NoError(t, tbl.Remove(k))
				delete(oracle, k)

				break
			}
		}
	}

	// P7: a final snapshot must match the oracle exactly.
	snap, n, err := tbl.BatchGet()
	require.NoError(t, err)
	require.Equal(t, len(oracle), n)
	require.Equal(t, oracle, snap)
}

func randValue(r *rand.Rand) []byte {
	n := r.IntN(ValueCap - 1)
	v := make([]byte, n)

	for i := range v {
		v[i] = byte('a' + r.IntN(26))
	}

	return v
}

// TestPropertyCapacityBound is P5: inserting MaxLive+1 distinct keys into an
// empty table must yield at least one ErrNoSpace.
func TestPropertyCapacityBound(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	sawNoSpace := false

	for i := int32(0); i < MaxLive+1; i++ {
		err := tbl.Add(i, nil)
		if err != nil {
			require.ErrorIs(t, err, ErrNoSpace)

			sawNoSpace = true
		}
	}

	require.True(t, sawNoSpace, "expected at least one ErrNoSpace inserting MaxLive+1 keys")
}

// TestPropertyNoGhostKeysAfterRehash is P6: alternating add/remove of a
// fresh key each round, performed many more times than Capacity, must keep
// succeeding - rehash has to reclaim the accumulating tombstones, or the
// table would eventually report ErrNoSpace despite never holding more than
// one live entry at once.
func TestPropertyNoGhostKeysAfterRehash(t *testing.T) {
	tbl := openTestTable(t, BackendRWLock)

	const rounds = Capacity*2 + 50

	for round := 0; round < rounds; round++ {
		key := int32(round)

		require.NoError(t, tbl.Add(key, []byte("v")), "round %d", round)
		require.NoError(t, tbl.Remove(key), "round %d", round)
	}

	count, err := tbl.Count()
	require.NoError(t, err)
	require.Zero(t, count)
}

// TestPropertyConcurrentReadersMakeProgress runs N readers calling Get in a
// tight loop on the RW-lock backend and checks that every one of them
// completes. It does not measure latency: it compares no timings, so it
// detects readers that block forever but not readers that serialize.
func TestPropertyConcurrentReadersMakeProgress(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-sensitive; skipped under -short")
	}

	tbl := openTestTable(t, BackendRWLock)
	require.NoError(t, tbl.Add(1, []byte("v")))

	const (
		readers    = 8
		iterations = 20000
	)

	done := make(chan struct{}, readers)

	for i := 0; i < readers; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				_, _ = tbl.Get(1)
			}

			done <- struct{}{}
		}()
	}

	for i := 0; i < readers; i++ {
		<-done
	}
}

