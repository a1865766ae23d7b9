package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/mr1hm/floodsense/internal/auth"
	"github.com/mr1hm/floodsense/internal/livesync"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/repository"
)

// TokenVerifier resolves the bearer token sent in the authorization metadata.
type TokenVerifier interface {
	Resolve(ctx context.Context, token string) (*models.User, *auth.Identity, error)
}

type Server struct {
	hub        *livesync.Hub
	repo       repository.AlertRepository
	verifier   TokenVerifier
	grpcServer *grpc.Server
}

var _ FloodServiceServer = (*Server)(nil)

// NewServer builds the service. A nil verifier leaves it unauthenticated.
func NewServer(hub *livesync.Hub, repo repository.AlertRepository, verifier TokenVerifier) *Server {
	s := &Server{
		hub:      hub,
		repo:     repo,
		verifier: verifier,
	}
	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(s.authUnary),
		grpc.StreamInterceptor(s.authStream),
	)
	RegisterFloodServiceServer(s.grpcServer, s)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) authenticate(ctx context.Context) error {
	if s.verifier == nil {
		return nil
	}

	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization metadata")
	}

	token := strings.TrimPrefix(values[0], "Bearer ")
	if _, _, err := s.verifier.Resolve(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return status.Error(codes.Unauthenticated, err.Error())
		}
		return status.Errorf(codes.Internal, "failed to verify token: %v", err)
	}
	return nil
}

func (s *Server) authUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if err := s.authenticate(ctx); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (s *Server) authStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := s.authenticate(ss.Context()); err != nil {
		return err
	}
	return handler(srv, ss)
}

func (s *Server) ListAlerts(ctx context.Context, req *ListAlertsRequest) (*ListAlertsResponse, error) {
	filter := repository.Filter{
		Limit:    int(req.Limit),
		Read:     req.Read,
		District: req.District,
	}
	if req.Type != "" {
		t := models.AlertType(req.Type)
		if !t.Valid() {
			return nil, status.Errorf(codes.InvalidArgument, "unknown alert type: %s", req.Type)
		}
		filter.Type = &t
	}

	alerts, err := s.repo.ListAlerts(ctx, filter)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to list alerts: %v", err)
	}

	return &ListAlertsResponse{
		Alerts:      alerts,
		UnreadCount: int32(s.hub.UnreadCount()),
	}, nil
}

func (s *Server) MarkAlertRead(ctx context.Context, req *MarkAlertReadRequest) (*MarkAlertReadResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	err := s.hub.MarkAlertAsRead(ctx, req.ID)
	if errors.Is(err, livesync.ErrAlertNotFound) {
		return nil, status.Errorf(codes.NotFound, "alert not found: %s", req.ID)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to mark alert read: %v", err)
	}
	return &MarkAlertReadResponse{}, nil
}

func (s *Server) StreamAlerts(req *StreamAlertsRequest, stream grpc.ServerStreamingServer[livesync.Event]) error {
	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	slog.Info("client subscribed to alert stream", "subscriber_id", id, "type", req.Type)

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from alert stream", "subscriber_id", id)
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}

			if req.Type != "" && (e.Alert == nil || string(e.Alert.Type) != req.Type) {
				continue
			}

			if err := stream.Send(&e); err != nil {
				slog.Error("failed to send event to stream", "error", err, "subscriber_id", id)
				return err
			}
		}
	}
}
