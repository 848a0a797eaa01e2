package generic

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParallelEach(t *testing.T) {
	items := []int{1, 2, 3, 4}
	results := make([]int, len(items))

	var calls atomic.Int32
	err := ParallelEach(items, func(i int, item int) error {
		calls.Add(1)
		results[i] = item * 2
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int32(4), calls.Load())
	require.Equal(t, []int{2, 4, 6, 8}, results)
}

func TestParallelEachError(t *testing.T) {
	errFailed := errors.New("failed")
	err := ParallelEach([]string{"a", "b", "c"}, func(i int, item string) error {
		if item == "b" {
			return errFailed
		}
		return nil
	})
	require.ErrorIs(t, err, errFailed)
}

func TestParallelEachEmpty(t *testing.T) {
	require.NoError(t, ParallelEach([]int{}, func(int, int) error {
		t.Fatal("unexpected call")
		return nil
	}))
}
