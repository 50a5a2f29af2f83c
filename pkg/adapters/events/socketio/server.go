// Package socketio broadcasts run events to Socket.IO clients. Every event is
// emitted to all connected clients under its topic name, e.g. "run:<id>:log".
package socketio

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// Server is a Socket.IO server that implements ports.Publisher.
type Server struct {
	io      *socket.Server
	logger  *zap.Logger
	clients atomic.Int64
}

// NewServer creates a Socket.IO server. Mount Handler under /socket.io/.
func NewServer(logger *zap.Logger) *Server {
	s := &Server{
		io:     socket.NewServer(nil, nil),
		logger: logger,
	}

	s.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		n := s.clients.Add(1)
		s.logger.Debug("socket.io client connected", zap.Int64("clients", n))

		client.On("disconnect", func(...any) {
			n := s.clients.Add(-1)
			s.logger.Debug("socket.io client disconnected", zap.Int64("clients", n))
		})
	})

	return s
}

// Handler returns the HTTP handler serving the Socket.IO protocol.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int64 {
	return s.clients.Load()
}

// Publish emits payload to every connected client under topic.
func (s *Server) Publish(ctx context.Context, topic string, payload any) error {
	s.io.Emit(topic, payload)
	return nil
}
