package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"connectrpc.com/grpcreflect"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/trivia/go/internal/trivia/gateway"
)

func setupServer(cfg Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// Sockets and REST reads
	services.Gateway.RegisterRoutes(mux)

	// Connect read API
	registerServices(mux, services)

	// Setup reflection for grpcui/grpcurl
	setupReflection(mux)

	mux.Handle("/health", healthHandler(services))

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	triviaServicePath, triviaServiceHandler := services.Gateway.RPCHandler()
	mux.Handle(triviaServicePath, triviaServiceHandler)
}

func setupReflection(mux *http.ServeMux) {
	reflector := grpcreflect.NewStaticReflector(gateway.TriviaServiceName)
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))
}

// HealthResponse is served on /health
type HealthResponse struct {
	Status      string                  `json:"status"`
	Relay       string                  `json:"relay"`
	Connections gateway.ConnectionStats `json:"connections"`
}

// healthHandler reports "degraded" with a 503 while a configured relay has
// lost NATS; the game itself keeps running in that case
func healthHandler(services *Services) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:      "ok",
			Relay:       "disabled",
			Connections: services.Gateway.GetStats(),
		}
		code := http.StatusOK
		if services.Link != nil {
			resp.Relay = "connected"
			if !services.Link.Connected() {
				resp.Relay = "disconnected"
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
