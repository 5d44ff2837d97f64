package transfer

import (
	"testing"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/stretchr/testify/require"
)

func TestNewPartitionsRange(t *testing.T) {
	s, err := New(1000, 300)
	require.NoError(t, err)
	require.Len(t, s.Chunks, 4)

	var total uint64
	for _, c := range s.SortedChunks() {
		total += c.Len()
	}
	require.Equal(t, uint64(1000), total)

	last := s.SortedChunks()[3]
	require.Equal(t, uint64(999), last.End)
}

func TestNewZeroChunkSizeRejected(t *testing.T) {
	_, err := New(1000, 0)
	require.ErrorIs(t, err, caracalerr.ErrBadChunkSize)
}

func TestNewZeroLengthIsImmediatelyComplete(t *testing.T) {
	s, err := New(0, 100)
	require.NoError(t, err)
	require.True(t, s.IsCompleted())
}

func TestUnknownLengthSingleChunk(t *testing.T) {
	s := Unknown()
	require.Len(t, s.Chunks, 1)
	require.False(t, s.IsCompleted())

	s.UpdateProgress(0, 4096)
	require.Equal(t, uint64(4096), s.TotalReceived())
	require.Equal(t, uint64(4096), s.ContentLength)
}

func TestUpdateProgressUnknownStartIsNoop(t *testing.T) {
	s, err := New(1000, 500)
	require.NoError(t, err)
	s.UpdateProgress(999999, 10)
	require.Equal(t, uint64(0), s.TotalReceived())
}

func TestSplitPicksLargestRemaining(t *testing.T) {
	s, err := New(1000, 1000)
	require.NoError(t, err)
	// single chunk [0,999]
	origin, created, ok := s.Split()
	require.True(t, ok)
	require.Equal(t, uint64(0), origin.Start)
	require.Equal(t, uint64(500), created.Start)
	require.Len(t, s.Chunks, 2)
}

func TestSplitNoneWhenCompleted(t *testing.T) {
	s, err := New(10, 10)
	require.NoError(t, err)
	s.UpdateProgress(0, 10)
	s.MarkChunkCompleted(0)
	_, _, ok := s.Split()
	require.False(t, ok)
}

func TestFreezeRequiresProgress(t *testing.T) {
	s, err := New(1000, 1000)
	require.NoError(t, err)
	_, _, ok := s.Freeze()
	require.False(t, ok)

	s.UpdateProgress(0, 100)
	origin, created, ok := s.Freeze()
	require.True(t, ok)
	require.True(t, origin.IsCompleted)
	require.Equal(t, uint64(100), origin.Start+origin.Len())
	require.Equal(t, uint64(100), created.Start)
}

func TestTotalReceivedMonotonic(t *testing.T) {
	s, err := New(1000, 500)
	require.NoError(t, err)
	prev := s.TotalReceived()
	for _, start := range []uint64{0, 500} {
		s.UpdateProgress(start, 500)
		cur := s.TotalReceived()
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	require.True(t, s.IsCompleted() == false) // IsCompleted requires explicit MarkChunkCompleted
}
