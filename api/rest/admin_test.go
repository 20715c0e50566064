package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questtoken/api/rest"
	"github.com/kasuganosora/questtoken/audit"
	"github.com/kasuganosora/questtoken/config"
	"github.com/kasuganosora/questtoken/game/player"
	"github.com/kasuganosora/questtoken/game/quest"
	"github.com/kasuganosora/questtoken/game/token"
	mw "github.com/kasuganosora/questtoken/middleware"
	"github.com/kasuganosora/questtoken/plugin/hook"
	"github.com/kasuganosora/questtoken/scheduler"
	"github.com/kasuganosora/questtoken/snapshot"
	"github.com/kasuganosora/questtoken/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func miner() *quest.Template {
	return &quest.Template{
		ID:          "miner",
		DisplayName: "Miner",
		Goal:        quest.Objective{Kind: quest.KindBreak, Material: "STONE", RequiredAmount: 4},
		Milestones:  []int{50, 100},
	}
}

func alex() *player.Snapshot {
	return &player.Snapshot{PlayerID: "p1", PlayerName: "Alex", PlayerLevel: 5, World: "world"}
}

const testSecret = "test-jwt-secret-32bytes-padded!!"

type env struct {
	r      *gin.Engine
	svc    *quest.Service
	repo   *snapshot.Repository
	writer *snapshot.Writer
	sched  *scheduler.Scheduler
	ledger *audit.Service
}

func newEnv(t *testing.T, adminKey string) *env {
	t.Helper()
	reg := quest.NewRegistry()
	require.NoError(t, reg.Register(miner()))

	db := testutil.SetupTestDB(t)
	repo := snapshot.NewRepository(db)
	writer := snapshot.NewWriter(repo, snapshot.WriterConfig{FlushInterval: time.Hour}, nopLogger())
	t.Cleanup(func() { _ = writer.Stop(context.Background()) })
	ledger := audit.New(db, nopLogger())
	t.Cleanup(ledger.Stop)
	hooks := hook.NewHookCenter()
	ledger.Attach(hooks)

	c, _ := testutil.SetupTestCache(t)
	svc := quest.NewService(quest.Deps{Registry: reg, Hooks: hooks, Tokens: token.NewStore(c), Store: repo, Queue: writer}, nopLogger())
	sched := scheduler.New(nopLogger())
	t.Cleanup(sched.Stop)

	sec := config.SecurityConfig{JWTSecret: testSecret, JWTTTLH: time.Hour}
	r := gin.New()
	rest.Register(r, rest.Handlers{
		Quest:   rest.NewQuestHandler(svc),
		Player:  rest.NewPlayerHandler(svc, nopLogger()),
		Session: rest.NewSessionHandler(c, sec, nopLogger()),
		Admin:   rest.NewAdminHandler(svc, sched, ledger, nopLogger()),
		Events:  func(c *gin.Context) { c.String(http.StatusOK, mw.GetPlayerID(c)) },
	}, adminKey, mw.PlayerAuth(sec.JWTSecret, c))
	return &env{r: r, svc: svc, repo: repo, writer: writer, sched: sched, ledger: ledger}
}

func (e *env) do(method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	e := newEnv(t, "")
	w := e.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

// ---- AdminKey ----

func TestAdmin_NoKeyDisabled(t *testing.T) {
	e := newEnv(t, "")
	assert.Equal(t, http.StatusServiceUnavailable, e.do(http.MethodGet, "/api/admin/metrics", "").Code)
}

func TestAdmin_WrongKey(t *testing.T) {
	e := newEnv(t, "secret")
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/admin/metrics", "wrong").Code)
}

// ---- Metrics ----

func TestMetrics_Structure(t *testing.T) {
	e := newEnv(t, "k")
	_, _, _, err := e.svc.Issue(context.Background(), alex(), "miner")
	require.NoError(t, err)

	w := e.do(http.MethodGet, "/api/admin/metrics", "k")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(1), resp["instances"])
	assert.Equal(t, float64(1), resp["templates"])
	assert.Contains(t, resp, "scheduler_tasks")
}

// ---- Save ----

func TestSave_QueuesDirtyInstances(t *testing.T) {
	e := newEnv(t, "k")
	v, _, _, err := e.svc.Issue(context.Background(), alex(), "miner")
	require.NoError(t, err)

	w := e.do(http.MethodPost, "/api/admin/save", "k")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["queued"])

	// Nothing changed since, so a second save queues nothing.
	w = e.do(http.MethodPost, "/api/admin/save", "k")
	assert.Equal(t, float64(0), decode(t, w)["queued"])

	require.NoError(t, e.writer.Stop(context.Background()))
	row, err := e.repo.Get(context.Background(), v.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, "miner", row.QuestID)
}

// ---- RemoveInstance ----

func TestRemoveInstance(t *testing.T) {
	e := newEnv(t, "k")
	v, _, _, err := e.svc.Issue(context.Background(), alex(), "miner")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, e.do(http.MethodDelete, "/api/admin/instances/"+v.InstanceID, "k").Code)
	assert.Zero(t, e.svc.Count())
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/api/admin/instances/"+v.InstanceID, "k").Code)
}

// ---- History ----

func TestHistory(t *testing.T) {
	e := newEnv(t, "k")
	v, _, _, err := e.svc.Issue(context.Background(), alex(), "miner")
	require.NoError(t, err)
	e.ledger.Stop()

	w := e.do(http.MethodGet, "/api/admin/instances/"+v.InstanceID+"/history", "k")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.Equal(t, float64(1), resp["count"])
	first := resp["events"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, quest.EventIssued, first["type"])
}

// ---- ListSchedulerTasks ----

func TestListSchedulerTasks(t *testing.T) {
	e := newEnv(t, "k")
	e.sched.AddTicker("autosave", time.Hour, func(ctx context.Context) {})

	w := e.do(http.MethodGet, "/api/admin/scheduler", "k")
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode(t, w)["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	assert.Equal(t, "autosave", tasks[0].(map[string]interface{})["name"])
}
