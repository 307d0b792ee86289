package journal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_EmptyJournal(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Last()
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestStore_AppendAndLast(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	first := Record{
		ID:         uuid.NewString(),
		Timestamp:  1528524100,
		BtcBalance: 19620000,
		EurBalance: 0,
		BtcDelta:   19620000,
		EurDelta:   -109890,
		Rate:       540000,
	}
	require.NoError(t, s.Append(first))

	second := Record{
		ID:         uuid.NewString(),
		Timestamp:  1538262307,
		BtcBalance: 0,
		EurBalance: 109890,
		BtcDelta:   -19620000,
		EurDelta:   109890,
		Rate:       575000,
	}
	require.NoError(t, s.Append(second))

	last, err := s.Last()
	require.NoError(t, err)
	assert.Equal(t, second, last)
}

func TestStore_AppendRequiresID(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Append(Record{Timestamp: 1528524100}))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir)
	require.NoError(t, err)

	rec := Record{ID: uuid.NewString(), Timestamp: 1538262307, EurBalance: 50000, BtcDelta: 8695652, EurDelta: -50000, Rate: 575000}
	require.NoError(t, s.Append(rec))
	require.NoError(t, s.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	last, err := reopened.Last()
	require.NoError(t, err)
	assert.Equal(t, rec, last)
}
