package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/trivia/go/internal/trivia/gateway"
	"github.com/mcdev12/trivia/go/internal/trivia/room"
)

type fakeLink struct{ up bool }

func (f fakeLink) Connected() bool { return f.up }

func testServices(t *testing.T) *Services {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := gateway.DefaultConfig()
	cfg.Room = room.Config{Clock: clockwork.NewFakeClock()}
	return &Services{Gateway: gateway.NewService(ctx, cfg)}
}

func health(t *testing.T, services *Services) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	healthHandler(services).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	services := testServices(t)

	code, resp := health(t, services)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Relay)
	assert.Zero(t, resp.Connections.TotalConnections)

	services.Link = fakeLink{up: true}
	code, resp = health(t, services)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "connected", resp.Relay)

	services.Link = fakeLink{up: false}
	code, resp = health(t, services)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "disconnected", resp.Relay)
}

func TestServer_ServesTriviaService(t *testing.T) {
	services := testServices(t)
	srv := httptest.NewServer(setupServer(Config{Port: "0", AllowedOrigins: []string{"*"}}, services).Handler)
	t.Cleanup(srv.Close)

	client := connect.NewClient[emptypb.Empty, structpb.Struct](srv.Client(), srv.URL+gateway.GetSessionStateProcedure)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.GetFields()["active"].GetBoolValue())
}
