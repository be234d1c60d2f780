// Package rpc exposes the session's liveness over the standard gRPC health
// protocol.
package rpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"parkarena/broker/internal/logging"
)

// SessionService is the health service name reported while the loop runs.
const SessionService = "parkarena.Session"

// Server wraps a gRPC server that only carries the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *logging.Logger
}

// NewServer builds the health server; a non-empty secret guards every call.
func NewServer(sharedSecret string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.L()
	}
	var opts []grpc.ServerOption
	if sharedSecret != "" {
		opts = append(opts,
			grpc.ChainUnaryInterceptor(SharedSecretUnaryInterceptor(sharedSecret)),
			grpc.ChainStreamInterceptor(SharedSecretStreamInterceptor(sharedSecret)),
		)
		logger.Info("gRPC shared-secret authentication enabled")
	}
	s := &Server{grpc: grpc.NewServer(opts...), health: health.NewServer(), logger: logger}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	//1.- The session starts NOT_SERVING until the loop reports it is running.
	s.health.SetServingStatus(SessionService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetServing flips the session service status.
func (s *Server) SetServing(serving bool) {
	if s == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(SessionService, status)
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health listening", logging.String("address", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
