package graphdb_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
)

// gateway is a minimal stand-in for the engine's HTTP gateway.
type gateway struct {
	mu       sync.Mutex
	requests []string
	bodies   []map[string]any
	handler  func(w http.ResponseWriter, r *http.Request, body map[string]any)
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	g.mu.Lock()
	g.requests = append(g.requests, r.Method+" "+r.URL.EscapedPath())
	g.bodies = append(g.bodies, body)
	g.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	g.handler(w, r, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, g *gateway) *graphdb.Client {
	t.Helper()
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := &config.Config{Graph: config.GraphConfig{Scheme: "http", Host: u.Hostname(), Port: port}}
	return graphdb.NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func happyGateway() *gateway {
	return &gateway{handler: func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		switch r.Method + " " + r.URL.Path {
		case "POST /v1/sessions":
			writeJSON(w, http.StatusOK, map[string]string{"id": "s1"})
		case "POST /v1/sessions/s1/transactions":
			writeJSON(w, http.StatusOK, map[string]string{"id": "t1"})
		case "POST /v1/transactions/t1/query":
			q, _ := body["query"].(string)
			switch q {
			case "count":
				writeJSON(w, http.StatusOK, map[string]any{"kind": "aggregate", "value": 30})
			case "empty count":
				writeJSON(w, http.StatusOK, map[string]any{"kind": "aggregate"})
			case "group":
				writeJSON(w, http.StatusOK, map[string]any{"kind": "groups", "groups": []map[string]any{
					{"owner": map[string]any{"iid": "A1", "base_type": "ATTRIBUTE", "type": "name", "value": "x"}, "value": 2},
				}})
			case "bad":
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"code": "syntax_error", "message": "unexpected token"}})
			default:
				writeJSON(w, http.StatusOK, map[string]any{"kind": "rows", "rows": []map[string]any{
					{
						"concepts": map[string]any{
							"x": map[string]any{"iid": "V1", "base_type": "ENTITY", "type": "Malware", "supertype": "Stix-Domain-Entity"},
						},
						"explainables": map[string]string{"rel": "e1"},
					},
				}})
			}
		case "GET /v1/transactions/t1/concepts/V1/attributes":
			writeJSON(w, http.StatusOK, map[string]any{"attributes": []map[string]any{
				{"iid": "A1", "base_type": "ATTRIBUTE", "type": "name", "value_type": "string", "value": "x"},
			}})
		case "POST /v1/transactions/t1/explain":
			writeJSON(w, http.StatusOK, map[string]any{"explanations": []map[string]string{{"pattern": "{ $x id V1; };"}}})
		case "POST /v1/transactions/t1/commit", "DELETE /v1/transactions/t1", "DELETE /v1/sessions/s1":
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"code": "not_found", "message": r.URL.Path}})
		}
	}}
}

func openTx(t *testing.T, c *graphdb.Client, typ graphdb.TxType) graphdb.Transaction {
	t.Helper()
	ctx := context.Background()
	s, err := c.Session(ctx, "grakn")
	require.NoError(t, err)
	tx, err := s.Transaction(ctx, typ, graphdb.TxOptions{Infer: true})
	require.NoError(t, err)
	return tx
}

func TestClient_SessionAndTransaction(t *testing.T) {
	g := happyGateway()
	c := newTestClient(t, g)
	tx := openTx(t, c, graphdb.Read)

	assert.Equal(t, graphdb.Read, tx.Type())
	require.Len(t, g.bodies, 2)
	assert.Equal(t, "grakn", g.bodies[0]["database"])
	assert.Equal(t, "read", g.bodies[1]["type"])
	assert.Equal(t, true, g.bodies[1]["infer"])
}

func TestClient_Query(t *testing.T) {
	c := newTestClient(t, happyGateway())
	tx := openTx(t, c, graphdb.Read)

	rows, err := tx.Query(context.Background(), "match $x isa Malware; get $x;")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	x, ok := rows[0].Get("x")
	require.True(t, ok)
	assert.Equal(t, "V1", x.IID)
	assert.True(t, x.IsEntity())
	assert.True(t, x.IsThing())
	assert.Equal(t, "Stix-Domain-Entity", x.Supertype)
	assert.Equal(t, "e1", rows[0].Explainables["rel"])
}

func TestClient_AggregateAndGroup(t *testing.T) {
	c := newTestClient(t, happyGateway())
	tx := openTx(t, c, graphdb.Read)
	ctx := context.Background()

	n, err := tx.Aggregate(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, 30.0, n)

	n, err = tx.Aggregate(ctx, "empty count")
	require.NoError(t, err)
	assert.Zero(t, n)

	groups, err := tx.Group(ctx, "group")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "x", groups[0].Owner.Value)
	assert.Equal(t, 2.0, groups[0].Value)

	_, err = tx.Aggregate(ctx, "match $x; get;")
	assert.Error(t, err, "rows answer to an aggregate query")
}

func TestClient_SyntaxError(t *testing.T) {
	c := newTestClient(t, happyGateway())
	tx := openTx(t, c, graphdb.Read)

	_, err := tx.Query(context.Background(), "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, graphdb.ErrSyntax)

	var gerr *graphdb.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	assert.Equal(t, "unexpected token", gerr.Message)
}

func TestClient_AttributesAndExplain(t *testing.T) {
	c := newTestClient(t, happyGateway())
	tx := openTx(t, c, graphdb.Read)
	ctx := context.Background()

	attrs, err := tx.Attributes(ctx, "V1")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "name", attrs[0].Type)
	assert.Equal(t, "string", attrs[0].ValueType)

	ex, err := tx.Explain(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, ex, 1)
	assert.Equal(t, "{ $x id V1; };", ex[0].Pattern)
}

func TestClient_CommitOnceThenClosed(t *testing.T) {
	g := happyGateway()
	c := newTestClient(t, g)
	tx := openTx(t, c, graphdb.Write)
	ctx := context.Background()

	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Commit(ctx), graphdb.ErrTxClosed)
	assert.NoError(t, tx.Close(ctx))

	_, err := tx.Query(ctx, "match $x isa A; get;")
	assert.ErrorIs(t, err, graphdb.ErrTxClosed)

	// session + tx + commit; the Close after Commit never reaches the gateway.
	assert.Len(t, g.requests, 3)
}

func TestClient_CommitOnReadTransaction(t *testing.T) {
	c := newTestClient(t, happyGateway())
	tx := openTx(t, c, graphdb.Read)

	assert.Error(t, tx.Commit(context.Background()))
}

func TestClient_Unreachable(t *testing.T) {
	cfg := &config.Config{Graph: config.GraphConfig{Host: "127.0.0.1", Port: 1}}
	c := graphdb.NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Session(context.Background(), "grakn")
	require.Error(t, err)
	assert.ErrorIs(t, err, graphdb.ErrUnavailable)
}

func TestClient_CancelledContext(t *testing.T) {
	c := newTestClient(t, happyGateway())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Session(ctx, "grakn")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTxTypeString(t *testing.T) {
	assert.Equal(t, "read", graphdb.Read.String())
	assert.Equal(t, "write", graphdb.Write.String())
	assert.Equal(t, "TxType(7)", graphdb.TxType(7).String())
}
