package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/typerace/go/internal/models"
)

// LeaderboardApp defines what the RPC service needs from the app layer.
type LeaderboardApp interface {
	Submit(ctx context.Context, req SubmitRequest) (*models.LeaderboardRecord, error)
	List(ctx context.Context) ([]models.RankedRecord, error)
}

// Service implements LeaderboardService over connect.
type Service struct {
	app LeaderboardApp
}

// NewService creates a new leaderboard RPC service.
func NewService(app LeaderboardApp) *Service {
	return &Service{app: app}
}

// SubmitStats stores a finished run. The request struct has the shape of the
// REST body: {playerId, userId, stats:{wpm, accuracy, errors}}.
func (s *Service) SubmitStats(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var submit SubmitRequest
	if err := fromStruct(req.Msg, &submit); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	rec, err := s.app.Submit(ctx, submit)
	if err != nil {
		if errors.Is(err, ErrInvalidStats) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out, err := toStruct(map[string]any{"record": rec})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// ListScores returns {scores: [...]} ranked by score.
func (s *Service) ListScores(ctx context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ranked, err := s.app.List(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if ranked == nil {
		ranked = []models.RankedRecord{}
	}
	out, err := toStruct(map[string]any{"scores": ranked})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// NewHandler builds the connect handler for svc and returns the path it
// should be mounted on.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler, error) {
	desc, err := serviceDescriptor()
	if err != nil {
		return "", nil, err
	}
	methods := desc.Methods()

	submit := connect.NewUnaryHandler(
		SubmitStatsProcedure,
		svc.SubmitStats,
		append([]connect.HandlerOption{connect.WithSchema(methods.ByName("SubmitStats"))}, opts...)...,
	)
	list := connect.NewUnaryHandler(
		ListScoresProcedure,
		svc.ListScores,
		append([]connect.HandlerOption{
			connect.WithSchema(methods.ByName("ListScores")),
			connect.WithIdempotency(connect.IdempotencyNoSideEffects),
		}, opts...)...,
	)

	path := "/" + ServiceName + "/"
	return path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SubmitStatsProcedure:
			submit.ServeHTTP(w, r)
		case ListScoresProcedure:
			list.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	}), nil
}

// toStruct converts v through its JSON form so field names match the REST API.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, dst any) error {
	if s == nil {
		return errors.New("empty request")
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
