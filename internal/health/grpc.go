package health

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the consumer.
const ServiceName = "payment.v1.PaymentProcessor"

// GRPCServer serves grpc.health.v1.Health and server reflection.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
}

// NewGRPCServer starts in NOT_SERVING until SetServing(true) is called.
func NewGRPCServer() *GRPCServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	// Register reflection service (useful for tools like grpcurl)
	reflection.Register(s)

	g := &GRPCServer{server: s, health: h}
	g.SetServing(false)
	return g
}

// SetServing flips both the overall and the named service status.
func (g *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}

// Server returns the underlying grpc.Server.
func (g *GRPCServer) Server() *grpc.Server {
	return g.server
}

// Stop marks everything NOT_SERVING and stops gracefully.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
