package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/springsconnect/springs/internal/rpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ErrSocketInUse means something already answers on the daemon socket.
var ErrSocketInUse = errors.New("daemon socket in use")

const socketDialWait = 200 * time.Millisecond

// Server serves the chat RPCs to local clients on the profile's socket.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer listens on the profile socket. A leftover socket file from a
// crashed daemon is replaced. A live one is an error.
func NewServer(p Params, logger *zap.Logger, chatSrv *rpc.Server) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = filepath.Join(p.dir(), "daemon.sock")
	}
	if err := clearStaleSocket(socketPath); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	s := &Server{
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}
	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.logUnary),
		grpc.ChainStreamInterceptor(s.logStream),
	)
	rpc.RegisterChatServer(s.grpcServer, chatSrv)
	return s, nil
}

func clearStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if conn, err := net.DialTimeout("unix", path, socketDialWait); err == nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrSocketInUse, path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

// Start serves until Stop. It blocks.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	err := s.grpcServer.Serve(s.listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop waits for in-flight calls until ctx ends, then cuts the remaining
// event streams. The socket file is removed.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("gRPC graceful stop timed out, closing streams")
		s.grpcServer.Stop()
		<-done
	}
	_ = os.Remove(s.socketPath)
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logCall(info.FullMethod, start, err)
	return resp, err
}

func (s *Server) logStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	s.logCall(info.FullMethod, start, err)
	return err
}

func (s *Server) logCall(method string, start time.Time, err error) {
	fields := []zap.Field{zap.String("method", method), zap.Duration("took", time.Since(start))}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("rpc failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Debug("rpc", fields...)
}
