package pool

import (
	"testing"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/segalloc/region"
)

func testLogger() log.Logger {
	return log.Logger{Level: log.PanicLevel, Writer: &log.ConsoleWriter{}}
}

const testCapacity = 47*8 + 58176

func TestOpenAllocateFreeRoundTrip(t *testing.T) {
	m := NewManager(testLogger())

	id, err := m.Open(testCapacity)
	require.NoError(t, err)

	p, err := m.Allocate(id, 64)
	require.NoError(t, err)
	require.NotNil(t, p)

	require.NoError(t, m.Free(id, p))
	require.NoError(t, m.Verify(id))
}

func TestSessionsAreIndependent(t *testing.T) {
	m := NewManager(testLogger())

	a, err := m.Open(testCapacity)
	require.NoError(t, err)
	b, err := m.Open(testCapacity)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	pa, err := m.Allocate(a, 128)
	require.NoError(t, err)
	_, err = m.Allocate(b, 128)
	require.NoError(t, err)

	statsA, err := m.Stat(a)
	require.NoError(t, err)
	require.NoError(t, m.Free(a, pa))
	statsAAfter, err := m.Stat(a)
	require.NoError(t, err)
	assert.Less(t, statsAAfter.UsedBytes, statsA.UsedBytes)

	statsB, err := m.Stat(b)
	require.NoError(t, err)
	assert.Greater(t, statsB.UsedBytes, uint64(0), "freeing session a must not affect session b")
}

func TestAllocateOnUnknownSessionFails(t *testing.T) {
	m := NewManager(testLogger())

	_, err := m.Allocate(unknownSessionID(), 16)
	assert.Error(t, err)
}

func TestCloseRemovesSession(t *testing.T) {
	m := NewManager(testLogger())

	id, err := m.Open(testCapacity)
	require.NoError(t, err)

	require.NoError(t, m.Close(id))
	assert.Empty(t, m.Sessions())

	_, err = m.Allocate(id, 16)
	assert.Error(t, err)
}

func TestStatsTrackActivity(t *testing.T) {
	m := NewManager(testLogger())

	id, err := m.Open(testCapacity)
	require.NoError(t, err)

	p, err := m.Allocate(id, 32)
	require.NoError(t, err)
	require.NoError(t, m.Free(id, p))
	require.NoError(t, m.Close(id))

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Opens)
	assert.Equal(t, uint64(1), stats.Allocations)
	assert.Equal(t, uint64(1), stats.Frees)
	assert.Equal(t, uint64(1), stats.Closes)
	assert.Equal(t, uint64(0), stats.AllocErrors)
}

func TestReallocDispatchesToOwningSession(t *testing.T) {
	m := NewManager(testLogger())

	id, err := m.Open(testCapacity)
	require.NoError(t, err)

	p, err := m.Allocate(id, 40)
	require.NoError(t, err)

	q, err := m.Realloc(id, p, 200)
	require.NoError(t, err)
	require.NotNil(t, q)
	require.NoError(t, m.Verify(id))
}

func TestOpenWithProviderUsesSuppliedRegion(t *testing.T) {
	m := NewManager(testLogger())

	id, err := m.OpenWithProvider(region.NewSlice(testCapacity))
	require.NoError(t, err)

	p, err := m.Allocate(id, 16)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func unknownSessionID() uuid.UUID { return uuid.New() }
