// Package rpcsrv exposes a pool.Manager over net/rpc to many independent
// sessions. The wire protocol never carries a raw pointer: every request
// and response after Open deals in a session's uuid.UUID and offsets
// relative to that session's region base, never in process-local
// unsafe.Pointer values.
package rpcsrv

import (
	"fmt"
	"net"
	"net/rpc"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/shenjiangwei/segalloc/pool"
)

// OpenRequest asks the server to create a new session.
type OpenRequest struct {
	Capacity uint32
}

// OpenResponse carries the new session's id.
type OpenResponse struct {
	Session uuid.UUID
	Error   string
}

// AllocRequest asks for size bytes within Session's heap.
type AllocRequest struct {
	Session uuid.UUID
	Size    uint32
}

// AllocResponse carries the new allocation's offset.
type AllocResponse struct {
	Offset uint32
	Error  string
}

// FreeRequest releases the allocation at Offset within Session's heap.
type FreeRequest struct {
	Session uuid.UUID
	Offset  uint32
}

// FreeResponse reports any error freeing the block.
type FreeResponse struct {
	Error string
}

// ReallocRequest resizes the allocation at Offset within Session's heap.
type ReallocRequest struct {
	Session uuid.UUID
	Offset  uint32
	Size    uint32
}

// ReallocResponse carries the resized allocation's (possibly new) offset.
type ReallocResponse struct {
	Offset uint32
	Error  string
}

// CloseRequest tears down Session.
type CloseRequest struct {
	Session uuid.UUID
}

// CloseResponse reports any error closing the session.
type CloseResponse struct {
	Error string
}

// DiagnoseRequest asks the server to run the heap checker against Session.
type DiagnoseRequest struct {
	Session uuid.UUID
}

// DiagnoseResponse reports the checker's verdict.
type DiagnoseResponse struct {
	Healthy bool
	Error   string
}

// Server registers a pool.Manager for net/rpc dispatch.
type Server struct {
	manager *pool.Manager
	logger  log.Logger
}

// NewServer creates a Server over a fresh pool.Manager and registers it
// with the default net/rpc registry.
func NewServer(logger log.Logger) (*Server, error) {
	s := &Server{
		manager: pool.NewManager(logger),
		logger:  logger,
	}
	if err := rpc.Register(s); err != nil {
		return nil, fmt.Errorf("rpcsrv: register: %w", err)
	}
	return s, nil
}

// Serve accepts connections on address until the listener is closed or an
// unrecoverable accept error occurs.
func (s *Server) Serve(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("rpcsrv: listen: %w", err)
	}
	defer listener.Close()

	s.logger.Info().Msgf("rpcsrv: listening on %s", address)

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.logger.Error().Err(err).Msg("rpcsrv: accept failed")
			return fmt.Errorf("rpcsrv: accept: %w", err)
		}
		go rpc.ServeConn(conn)
	}
}

// Open creates a new session and returns its id.
func (s *Server) Open(req *OpenRequest, resp *OpenResponse) error {
	id, err := s.manager.Open(req.Capacity)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}
	resp.Session = id
	return nil
}

// Allocate allocates memory within req.Session's heap.
func (s *Server) Allocate(req *AllocRequest, resp *AllocResponse) error {
	offset, err := s.manager.AllocateOffset(req.Session, req.Size)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}
	resp.Offset = offset
	return nil
}

// Free releases memory within req.Session's heap.
func (s *Server) Free(req *FreeRequest, resp *FreeResponse) error {
	if err := s.manager.FreeOffset(req.Session, req.Offset); err != nil {
		resp.Error = err.Error()
	}
	return nil
}

// Realloc resizes an allocation within req.Session's heap.
func (s *Server) Realloc(req *ReallocRequest, resp *ReallocResponse) error {
	offset, err := s.manager.ReallocOffset(req.Session, req.Offset, req.Size)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}
	resp.Offset = offset
	return nil
}

// Close tears down req.Session.
func (s *Server) Close(req *CloseRequest, resp *CloseResponse) error {
	if err := s.manager.Close(req.Session); err != nil {
		resp.Error = err.Error()
	}
	return nil
}

// Diagnose runs the heap checker against req.Session.
func (s *Server) Diagnose(req *DiagnoseRequest, resp *DiagnoseResponse) error {
	if err := s.manager.Verify(req.Session); err != nil {
		resp.Healthy = false
		resp.Error = err.Error()
		return nil
	}
	resp.Healthy = true
	return nil
}

// Stats reports pool-wide counters, used by segallocctl for operator
// visibility into the running daemon.
func (s *Server) Stats(_ *struct{}, resp *pool.Stats) error {
	*resp = s.manager.Stats()
	return nil
}
