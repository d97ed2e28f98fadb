package rpcsrv

import (
	"net"
	"net/rpc"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/segalloc/pool"
)

const testCapacity = 47*8 + 58176

func testLogger() log.Logger {
	return log.Logger{Level: log.PanicLevel, Writer: &log.ConsoleWriter{}}
}

// startTestServer registers a fresh Server against an in-process listener
// and returns its address, mirroring net/rpc's own server tests rather than
// spawning a real subprocess.
func startTestServer(t *testing.T) string {
	t.Helper()

	server := &Server{manager: pool.NewManager(testLogger()), logger: testLogger()}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	newServer := rpc.NewServer()
	require.NoError(t, newServer.Register(server))

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go newServer.ServeConn(conn)
		}
	}()

	t.Cleanup(func() { listener.Close() })
	return listener.Addr().String()
}

func TestClientOpenAllocateFreeRoundTrip(t *testing.T) {
	addr := startTestServer(t)

	client, err := Dial(addr)
	require.NoError(t, err)
	defer client.CloseConnection()

	session, err := client.Open(testCapacity)
	require.NoError(t, err)

	offset, err := client.Allocate(session, 64)
	require.NoError(t, err)

	owned := client.Owned(session)
	assert.Contains(t, owned, offset)

	require.NoError(t, client.Free(session, offset))
	owned = client.Owned(session)
	assert.NotContains(t, owned, offset)

	healthy, err := client.Diagnose(session)
	require.NoError(t, err)
	assert.True(t, healthy)
}

func TestClientReallocUpdatesOwnership(t *testing.T) {
	addr := startTestServer(t)

	client, err := Dial(addr)
	require.NoError(t, err)
	defer client.CloseConnection()

	session, err := client.Open(testCapacity)
	require.NoError(t, err)

	offset, err := client.Allocate(session, 40)
	require.NoError(t, err)

	newOffset, err := client.Realloc(session, offset, 200)
	require.NoError(t, err)

	owned := client.Owned(session)
	assert.Contains(t, owned, newOffset)
}

func TestClientCloseTearsDownSession(t *testing.T) {
	addr := startTestServer(t)

	client, err := Dial(addr)
	require.NoError(t, err)
	defer client.CloseConnection()

	session, err := client.Open(testCapacity)
	require.NoError(t, err)

	require.NoError(t, client.Close(session))

	_, err = client.Allocate(session, 16)
	assert.Error(t, err)
}

func TestStatsReflectsActivity(t *testing.T) {
	addr := startTestServer(t)

	client, err := Dial(addr)
	require.NoError(t, err)
	defer client.CloseConnection()

	session, err := client.Open(testCapacity)
	require.NoError(t, err)

	_, err = client.Allocate(session, 16)
	require.NoError(t, err)

	stats, err := client.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Opens, uint64(1))
	assert.GreaterOrEqual(t, stats.Allocations, uint64(1))
}
