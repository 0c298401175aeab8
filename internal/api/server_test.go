package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatthief/internal/catalog"
	"chatthief/internal/chat"
	"chatthief/internal/economy"
	"chatthief/internal/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *economy.Service) {
	t.Helper()
	svc := economy.NewService(memory.New(), catalog.FromPrices(map[string]int64{"clap": 1, "wow": 2}), economy.NewStaticRoles("beginbot"), nil)
	srv := New(Options{CORSOrigins: []string{"http://localhost:*"}}, nil, svc, chat.NewRouter(svc, "!", nil))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	var out map[string]bool
	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/healthz", nil, &out))
	assert.True(t, out["ok"])
}

func TestRequestIDHeader(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	_, err = uuid.Parse(resp.Header.Get("X-Request-Id"))
	assert.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "chat-42")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "chat-42", resp.Header.Get("X-Request-Id"))
}

func TestPurchaseFlow(t *testing.T) {
	ctx := context.Background()
	ts, svc := newTestServer(t)

	var out PurchaseResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/purchases", PurchaseRequest{User: "amy", Command: "clap"}, &out))
	assert.Equal(t, economy.PurchaseInsufficientFunds, out.Outcome.Result)
	assert.Equal(t, "@amy not enough Cool Points to buy !clap - 0/1", out.Message)

	_, err := svc.AdjustCoolPoints(ctx, "amy", 5)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/purchases", PurchaseRequest{User: "amy", Command: "clap"}, &out))
	assert.Equal(t, economy.PurchaseSuccess, out.Outcome.Result)
	assert.Equal(t, int64(4), out.Outcome.CoolPoints)

	var stats economy.Stats
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/users/amy", nil, &stats))
	assert.Equal(t, int64(4), stats.CoolPoints)

	var cmds struct {
		Username string   `json:"username"`
		Commands []string `json:"commands"`
	}
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/users/amy/commands", nil, &cmds))
	assert.Equal(t, []string{"clap"}, cmds.Commands)

	var info economy.CommandInfo
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/commands/clap", nil, &info))
	assert.Equal(t, int64(2), info.Cost)
	assert.Equal(t, 1, info.Owners)

	var hist struct {
		Entries []economy.LedgerEntry `json:"entries"`
	}
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/users/amy/history?limit=2", nil, &hist))
	assert.Len(t, hist.Entries, 2)
}

func TestTransfers(t *testing.T) {
	ts, _ := newTestServer(t)

	var out TransferResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/shares", TransferRequest{Actor: "beginbot", Command: "wow", Beneficiary: "bob"}, &out))
	assert.True(t, out.Outcome.Granted())
	assert.True(t, out.Outcome.Privileged)
	assert.Equal(t, "@beginbot shared !wow with @bob", out.Message)

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/gifts", TransferRequest{Actor: "bob", Command: "wow", Beneficiary: "cy"}, &out))
	assert.Equal(t, economy.DenyInsufficientSocialCapital, out.Outcome.Reason)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPost, "/v1/shares", TransferRequest{Actor: "bob", Command: "kazoo", Beneficiary: "cy"}, &errBody))
	assert.NotEmpty(t, errBody["error"])
}

func TestLeaderboardAndEconomy(t *testing.T) {
	ctx := context.Background()
	ts, svc := newTestServer(t)
	for name, cool := range map[string]int64{"a": 3, "b": 7} {
		_, err := svc.AdjustCoolPoints(ctx, name, cool)
		require.NoError(t, err)
	}

	var board struct {
		Kind economy.LeaderboardKind  `json:"kind"`
		Rows []economy.LeaderboardRow `json:"rows"`
	}
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/leaderboard?kind=cool_points&limit=1", nil, &board))
	assert.Equal(t, []economy.LeaderboardRow{{Rank: 1, Username: "b", Value: 7}}, board.Rows)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodGet, "/v1/leaderboard?kind=vibes", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodGet, "/v1/leaderboard?limit=-1", nil, &errBody))

	var sum economy.Summary
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/economy", nil, &sum))
	assert.Equal(t, economy.Summary{Users: 2, TotalCoolPoints: 10}, sum)
}

func TestChat(t *testing.T) {
	ts, _ := newTestServer(t)

	var resp chat.Response
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/chat", ChatRequest{User: "amy", Message: "!me"}, &resp))
	assert.Equal(t, "@amy - Mana: 3 | Street Cred: 0 | Cool Points: 0", resp.Text)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/v1/chat", ChatRequest{Message: "!me"}, &errBody))
	assert.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/v1/chat", map[string]string{"nick": "amy"}, &errBody))
}
