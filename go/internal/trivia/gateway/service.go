package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/trivia/room"
)

// Service is the trivia gateway: it owns the room and the sockets around it
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	room              *room.Room
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Room             room.Config
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates the connection manager and starts the room. The room
// stops when ctx is done.
func NewService(ctx context.Context, config Config) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, config.Room.Clock)
	r := room.New(ctx, config.Room, connectionManager)
	connectionManager.AttachRoom(r)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(r, config.Room.Store),
		room:              r,
	}
}

// Start delivers room events to sockets until ctx is done, then waits for
// the room to finish persisting results.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting trivia gateway service")

	s.connectionManager.Start(ctx)
	<-s.room.Done()

	log.Info().Msg("trivia gateway service stopped")
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("trivia gateway routes registered")
}

// RPCHandler returns the Connect read API and the path it is served under
func (s *Service) RPCHandler() (string, http.Handler) {
	return NewTriviaServiceHandler(s.stateHandler)
}

// Room returns the session authority
func (s *Service) Room() *room.Room {
	return s.room
}

// GetStats returns the live connection counts
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
