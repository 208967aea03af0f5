package leaderboard

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/typerace/go/clients"
	"github.com/mcdev12/typerace/go/internal/models"
)

// Client talks to a leaderboard server: submissions go through the REST
// endpoint, reads through the RPC service.
type Client struct {
	*clients.BaseClient
	listScores *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a client for the server at baseURL (for example
// http://localhost:8080).
func NewClient(httpClient *http.Client, baseURL string) *Client {
	base := clients.NewBaseClient(httpClient, baseURL)
	return &Client{
		BaseClient: base,
		listScores: connect.NewClient[structpb.Struct, structpb.Struct](
			base.HTTPClient(),
			base.BaseURL()+ListScoresProcedure,
			connect.WithIdempotency(connect.IdempotencyNoSideEffects),
		),
	}
}

// Submit posts a finished run.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*models.LeaderboardRecord, error) {
	var rec models.LeaderboardRecord
	status, err := c.PostJSON(ctx, "/api/typing-stats", req, &rec)
	if err != nil {
		return nil, fmt.Errorf("submit typing stats: %w", err)
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("submit typing stats: unexpected status %d", status)
	}
	return &rec, nil
}

// List fetches the ranked leaderboard.
func (c *Client) List(ctx context.Context) ([]models.RankedRecord, error) {
	resp, err := c.listScores.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	var out struct {
		Scores []models.RankedRecord `json:"scores"`
	}
	if err := fromStruct(resp.Msg, &out); err != nil {
		return nil, err
	}
	return out.Scores, nil
}
