package rpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/rpsarena/logger"
)

// LobbyService is the service name reported by the health server in
// addition to the overall ("") status.
const LobbyService = "rpsarena.Lobby"

// HealthServer serves grpc.health.v1 for orchestrators and load balancers.
type HealthServer struct {
	listener net.Listener
	server   *grpc.Server
	health   *health.Server
}

func NewHealthServer(addr string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewHealthServerOn(lis), nil
}

// NewHealthServerOn uses an existing listener (bufconn in tests).
func NewHealthServerOn(lis net.Listener) *HealthServer {
	hs := health.NewServer()
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(LobbyService, healthpb.HealthCheckResponse_SERVING)

	return &HealthServer{listener: lis, server: s, health: hs}
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// Start blocks serving until Stop.
func (h *HealthServer) Start() {
	logger.Log.Infof("gRPC health server listening on %s", h.Addr())
	if err := h.server.Serve(h.listener); err != nil {
		logger.Log.Errorf("gRPC health server: %v", err)
	}
}

// SetNotServing flips every status to NOT_SERVING; watchers are notified.
func (h *HealthServer) SetNotServing() {
	h.health.Shutdown()
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
