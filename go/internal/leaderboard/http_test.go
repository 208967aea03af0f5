package leaderboard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/typerace/go/internal/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *App) {
	t.Helper()
	app := NewApp(NewMemoryRepository(), nil)
	mux := http.NewServeMux()
	RegisterRoutes(mux, app)
	path, handler, err := NewHandler(NewService(app))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, app
}

func TestClientSubmitAndList(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewClient(srv.Client(), srv.URL)
	ctx := context.Background()

	rec, err := client.Submit(ctx, SubmitRequest{PlayerID: "p1", UserID: "u1", Stats: models.Stats{WPM: 60, Accuracy: 100, Errors: 5}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.PlayerID != "p1" || rec.UpdatedAt.IsZero() {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := client.Submit(ctx, SubmitRequest{PlayerID: "p2", Stats: models.Stats{WPM: 80, Accuracy: 100}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ranked, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranked = %d entries", len(ranked))
	}
	if ranked[0].PlayerID != "p2" || ranked[0].Score != 80 || ranked[1].Score != 45 || ranked[1].Rank != 2 {
		t.Fatalf("unexpected ranking %+v", ranked)
	}
}

func TestRESTRejectsInvalidStats(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/typing-stats", "application/json",
		strings.NewReader(`{"playerId":"p1","stats":{"wpm":50,"accuracy":140,"errors":0}}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/typing-stats", "application/json", strings.NewReader(`{`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", resp.StatusCode)
	}
}

func TestRESTListEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/typing-stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("body = %q, want []", buf.String())
	}
}

func TestRPCSubmitInvalidArgument(t *testing.T) {
	srv, _ := newTestServer(t)
	submit := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+SubmitStatsProcedure)

	req, err := structpb.NewStruct(map[string]any{
		"playerId": "p1",
		"stats":    map[string]any{"wpm": 40, "accuracy": -3, "errors": 0},
	})
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	_, err = submit.CallUnary(context.Background(), connect.NewRequest(req))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("code = %v, want invalid_argument (err %v)", connect.CodeOf(err), err)
	}
}

func TestServiceDescriptorRegistered(t *testing.T) {
	desc, err := serviceDescriptor()
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if string(desc.FullName()) != ServiceName || desc.Methods().Len() != 2 {
		t.Fatalf("unexpected descriptor %s with %d methods", desc.FullName(), desc.Methods().Len())
	}
	if desc.Methods().ByName("ListScores").Input().FullName() != "google.protobuf.Struct" {
		t.Fatalf("ListScores input is not Struct")
	}
}
