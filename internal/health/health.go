package health

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/burnout-twin/burnout-twin/internal/logging"
)

// SnapshotService reports whether a published snapshot is available.
const SnapshotService = "burnout.twin.Snapshot"

// #region server
// Server exposes the standard gRPC health service. The overall status is
// SERVING for the server's lifetime; SnapshotService follows the snapshot
// file.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	log    *zap.Logger
}

// NewServer builds and registers the health service.
func NewServer(logger *zap.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: grpchealth.NewServer(),
		log:    logging.OrNop(logger).Named("health"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SnapshotService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetSnapshotPresent flips SnapshotService. It matches the Cache callback.
func (s *Server) SetSnapshotPresent(present bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if present {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(SnapshotService, status)
	s.log.Debug("snapshot status", zap.String("status", status.String()))
}

// Serve blocks serving on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("health listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains connections.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// #endregion server

// #region client
// Client probes a health server.
type Client struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// NewClient connects to addr without TLS. Extra options are appended.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

// Check returns the serving status name for service ("" is the server).
func (c *Client) Check(ctx context.Context, service string) (string, error) {
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check %q: %w", service, err)
	}
	return resp.GetStatus().String(), nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion client
