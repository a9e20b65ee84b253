package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// TriviaServiceName is the fully-qualified name of the read API
	TriviaServiceName = "trivia.v1.TriviaService"

	GetSessionStateProcedure = "/trivia.v1.TriviaService/GetSessionState"
	ListResultsProcedure     = "/trivia.v1.TriviaService/ListResults"

	triviaProtoPath = "trivia/v1/trivia.proto"
)

var (
	triviaFileOnce sync.Once
	triviaFileErr  error
)

// registerTriviaFile adds the TriviaService descriptor to the global registry
// so reflection clients can list it. Messages are well-known types that carry
// the same JSON documents as the REST routes.
func registerTriviaFile() error {
	triviaFileOnce.Do(func() {
		if _, err := protoregistry.GlobalFiles.FindFileByPath(triviaProtoPath); err == nil {
			return
		}
		method := func(name, in, out string) *descriptorpb.MethodDescriptorProto {
			return &descriptorpb.MethodDescriptorProto{
				Name:       proto.String(name),
				InputType:  proto.String(in),
				OutputType: proto.String(out),
				Options: &descriptorpb.MethodOptions{
					IdempotencyLevel: descriptorpb.MethodOptions_NO_SIDE_EFFECTS.Enum(),
				},
			}
		}
		fdp := &descriptorpb.FileDescriptorProto{
			Name:    proto.String(triviaProtoPath),
			Package: proto.String("trivia.v1"),
			Syntax:  proto.String("proto3"),
			Dependency: []string{
				"google/protobuf/empty.proto",
				"google/protobuf/struct.proto",
			},
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name: proto.String("TriviaService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					method("GetSessionState", ".google.protobuf.Empty", ".google.protobuf.Struct"),
					method("ListResults", ".google.protobuf.Struct", ".google.protobuf.Struct"),
				},
			}},
		}
		fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			triviaFileErr = fmt.Errorf("build %s: %w", triviaProtoPath, err)
			return
		}
		triviaFileErr = protoregistry.GlobalFiles.RegisterFile(fd)
	})
	return triviaFileErr
}

// NewTriviaServiceHandler serves the read API over Connect, gRPC and
// gRPC-Web. It returns the path to mount the handler on.
func NewTriviaServiceHandler(h *StateHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	if err := registerTriviaFile(); err != nil {
		log.Error().Err(err).Msg("trivia service descriptor not registered, reflection will not list it")
	}

	opts = append([]connect.HandlerOption{connect.WithIdempotency(connect.IdempotencyNoSideEffects)}, opts...)
	getState := connect.NewUnaryHandler(GetSessionStateProcedure, h.GetSessionState, opts...)
	listResults := connect.NewUnaryHandler(ListResultsProcedure, h.ListResults, opts...)

	return "/" + TriviaServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GetSessionStateProcedure:
			getState.ServeHTTP(w, r)
		case ListResultsProcedure:
			listResults.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// GetSessionState returns the same document as GET /api/session/state
func (h *StateHandler) GetSessionState(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	snap, ok := h.stateProvider.State(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnavailable, errRoomStopped)
	}
	msg, err := toStruct(sessionState(snap))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// ListResults takes optional session_id and limit fields. With session_id
// the response holds "scores", otherwise "results".
func (h *StateHandler) ListResults(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()

	var body any
	if sessionID := fields["session_id"].GetStringValue(); sessionID != "" {
		scores, err := h.finalScores(ctx, sessionID)
		if err != nil {
			return nil, rpcError(err)
		}
		body = map[string]any{"scores": scores}
	} else {
		limit := defaultResultsLimit
		if v, ok := fields["limit"]; ok {
			n := v.GetNumberValue()
			if n <= 0 || n != math.Trunc(n) {
				return nil, connect.NewError(connect.CodeInvalidArgument, errBadLimit)
			}
			limit = int(n)
		}
		recs, err := h.recentResults(ctx, limit)
		if err != nil {
			return nil, rpcError(err)
		}
		body = map[string]any{"results": recs}
	}

	msg, err := toStruct(body)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func rpcError(err error) error {
	if errors.Is(err, errNoResults) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}
	return out, nil
}
