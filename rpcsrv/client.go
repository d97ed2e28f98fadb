package rpcsrv

import (
	"fmt"
	"net/rpc"
	"sync"

	"github.com/google/uuid"

	"github.com/shenjiangwei/segalloc/pool"
)

// Client wraps an rpc.Client, tracking which offsets the caller currently
// holds open for each session.
type Client struct {
	rpc *rpc.Client

	mu        sync.Mutex
	allocated map[uuid.UUID]map[uint32]uint32 // session -> offset -> size
}

// Dial connects to a running Server at address.
func Dial(address string) (*Client, error) {
	rpcClient, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("rpcsrv: dial %s: %w", address, err)
	}
	return &Client{
		rpc:       rpcClient,
		allocated: make(map[uuid.UUID]map[uint32]uint32),
	}, nil
}

// Open creates a new session of the given capacity on the server.
func (c *Client) Open(capacity uint32) (uuid.UUID, error) {
	req := &OpenRequest{Capacity: capacity}
	resp := &OpenResponse{}

	if err := c.rpc.Call("Server.Open", req, resp); err != nil {
		return uuid.Nil, fmt.Errorf("rpcsrv: open call: %w", err)
	}
	if resp.Error != "" {
		return uuid.Nil, fmt.Errorf("rpcsrv: server: %s", resp.Error)
	}

	c.mu.Lock()
	c.allocated[resp.Session] = make(map[uint32]uint32)
	c.mu.Unlock()

	return resp.Session, nil
}

// Allocate requests size bytes within session's heap.
func (c *Client) Allocate(session uuid.UUID, size uint32) (uint32, error) {
	req := &AllocRequest{Session: session, Size: size}
	resp := &AllocResponse{}

	if err := c.rpc.Call("Server.Allocate", req, resp); err != nil {
		return 0, fmt.Errorf("rpcsrv: allocate call: %w", err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("rpcsrv: server: %s", resp.Error)
	}

	c.mu.Lock()
	if c.allocated[session] == nil {
		c.allocated[session] = make(map[uint32]uint32)
	}
	c.allocated[session][resp.Offset] = size
	c.mu.Unlock()

	return resp.Offset, nil
}

// Free releases the allocation at offset within session's heap.
func (c *Client) Free(session uuid.UUID, offset uint32) error {
	req := &FreeRequest{Session: session, Offset: offset}
	resp := &FreeResponse{}

	if err := c.rpc.Call("Server.Free", req, resp); err != nil {
		return fmt.Errorf("rpcsrv: free call: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("rpcsrv: server: %s", resp.Error)
	}

	c.mu.Lock()
	delete(c.allocated[session], offset)
	c.mu.Unlock()

	return nil
}

// Realloc resizes the allocation at offset within session's heap.
func (c *Client) Realloc(session uuid.UUID, offset uint32, size uint32) (uint32, error) {
	req := &ReallocRequest{Session: session, Offset: offset, Size: size}
	resp := &ReallocResponse{}

	if err := c.rpc.Call("Server.Realloc", req, resp); err != nil {
		return 0, fmt.Errorf("rpcsrv: realloc call: %w", err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("rpcsrv: server: %s", resp.Error)
	}

	c.mu.Lock()
	delete(c.allocated[session], offset)
	c.allocated[session][resp.Offset] = size
	c.mu.Unlock()

	return resp.Offset, nil
}

// Close tears down session on the server.
func (c *Client) Close(session uuid.UUID) error {
	req := &CloseRequest{Session: session}
	resp := &CloseResponse{}

	if err := c.rpc.Call("Server.Close", req, resp); err != nil {
		return fmt.Errorf("rpcsrv: close call: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("rpcsrv: server: %s", resp.Error)
	}

	c.mu.Lock()
	delete(c.allocated, session)
	c.mu.Unlock()

	return nil
}

// Diagnose asks the server to run the heap checker against session.
func (c *Client) Diagnose(session uuid.UUID) (bool, error) {
	req := &DiagnoseRequest{Session: session}
	resp := &DiagnoseResponse{}

	if err := c.rpc.Call("Server.Diagnose", req, resp); err != nil {
		return false, fmt.Errorf("rpcsrv: diagnose call: %w", err)
	}
	if resp.Error != "" {
		return resp.Healthy, fmt.Errorf("rpcsrv: server: %s", resp.Error)
	}
	return resp.Healthy, nil
}

// Stats retrieves pool-wide counters from the server.
func (c *Client) Stats() (pool.Stats, error) {
	var resp pool.Stats
	if err := c.rpc.Call("Server.Stats", &struct{}{}, &resp); err != nil {
		return pool.Stats{}, fmt.Errorf("rpcsrv: stats call: %w", err)
	}
	return resp, nil
}

// Owned returns the offsets this client currently holds open for session.
func (c *Client) Owned(session uuid.UUID) map[uint32]uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	owned := make(map[uint32]uint32, len(c.allocated[session]))
	for offset, size := range c.allocated[session] {
		owned[offset] = size
	}
	return owned
}

// CloseConnection closes the underlying TCP connection without closing any
// session. Call Close(session) first to tear down sessions cleanly.
func (c *Client) CloseConnection() error { return c.rpc.Close() }
