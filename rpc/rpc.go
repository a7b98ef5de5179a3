package rpc

import (
	"errors"
	"net"
	"net/rpc"
	"sync"

	"github.com/wfunc/rpsarena/logger"
)

// Server manages the net/rpc listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
	wg       sync.WaitGroup
}

// NewServer listens on addr. Services are registered with Register before
// Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

// Register publishes rcvr's methods under name.
func (s *Server) Register(name string, rcvr any) error {
	return s.rpc.RegisterName(name, rcvr)
}

// Addr is the bound address (useful with ":0").
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests. It returns when Stop is called.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.rpc.ServeConn(conn)
		}()
	}
}

// Stop closes the RPC listener. Open client connections finish on their own.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}
