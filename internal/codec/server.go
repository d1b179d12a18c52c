package codec

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/neuroadapt/internal/signal"
)

// #region server
// SourceFactory opens the signal source backing one session.
type SourceFactory func(sessionID string, length int) (signal.Source, error)

// Server serves signal windows over gRPC, one source per session.
type Server struct {
	factory SourceFactory
	logger  *zap.Logger

	mu       sync.Mutex
	sources  map[string]signal.Source
	sequence map[string]uint64
}

// NewServer creates an acquisition server. A nil logger disables logging.
func NewServer(factory SourceFactory, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		factory:  factory,
		logger:   logger,
		sources:  make(map[string]signal.Source),
		sequence: make(map[string]uint64),
	}
}

// ReadWindow returns the next window of the requested session.
func (s *Server) ReadWindow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	sessionID := fields["session_id"].GetStringValue()
	length := int(fields["length"].GetNumberValue())
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}

	src, seq, err := s.source(sessionID, length)
	if err != nil {
		return nil, err
	}

	buf, err := src.Next(ctx)
	if err != nil {
		if isEOF(err) {
			return nil, status.Error(codes.OutOfRange, "source exhausted")
		}
		if ctx.Err() != nil {
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		s.logger.Warn("read window failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "read window: %v", err)
	}
	if length > 0 && buf.Len() != length {
		return nil, status.Errorf(codes.FailedPrecondition, "source produced %d samples, want %d", buf.Len(), length)
	}

	s.logger.Debug("window served", zap.String("session_id", sessionID), zap.Uint64("sequence", seq))
	return encodeSamples(buf.Samples(), seq), nil
}

// source returns the session's source, opening it on first use, and the
// sequence number of the window about to be read.
func (s *Server) source(sessionID string, length int) (signal.Source, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[sessionID]
	if !ok {
		var err error
		src, err = s.factory(sessionID, length)
		if err != nil {
			return nil, 0, status.Errorf(codes.InvalidArgument, "open source: %v", err)
		}
		s.sources[sessionID] = src
		s.logger.Info("session source opened", zap.String("session_id", sessionID), zap.Int("length", length))
	}
	seq := s.sequence[sessionID]
	s.sequence[sessionID] = seq + 1
	return src, seq, nil
}

// #endregion server
