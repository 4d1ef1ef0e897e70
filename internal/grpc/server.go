package grpc

import (
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const ServiceName = "affiliate.v1.AffiliateService"

// Pinger reports whether a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	GRPC     *grpc.Server
	Health   *health.Server
	DB       Pinger
	Interval time.Duration
}

func NewServer(db Pinger) *Server {
	s := &Server{
		GRPC:     grpc.NewServer(),
		Health:   health.NewServer(),
		DB:       db,
		Interval: 15 * time.Second,
	}
	healthpb.RegisterHealthServer(s.GRPC, s.Health)
	reflection.Register(s.GRPC)
	return s
}

// Refresh pings the database and publishes the result for the overall
// server and ServiceName.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		log.WithError(err).Warn("Database ping failed, reporting NOT_SERVING")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.Health.SetServingStatus("", status)
	s.Health.SetServingStatus(ServiceName, status)
	return status
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Serve blocks until the listener fails or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)
	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.Health.Shutdown()
		s.GRPC.GracefulStop()
	}()
	return s.GRPC.Serve(lis)
}

// StartGRPCServer initializes and starts the gRPC health server
func StartGRPCServer(ctx context.Context, port string, db Pinger) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	log.Printf("gRPC server listening on port %s", port)
	if err := NewServer(db).Serve(ctx, lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
