package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kasuganosora/questtoken/game/quest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTemplates(t *testing.T) {
	e := newEnv(t, "")
	w := e.do(http.MethodGet, "/api/quests", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Quests []struct {
			ID         string `json:"id"`
			Objectives []struct {
				Kind           string `json:"kind"`
				RequiredAmount int    `json:"required_amount"`
				Description    string `json:"description"`
			} `json:"objectives"`
		} `json:"quests"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "miner", resp.Quests[0].ID)
	require.Len(t, resp.Quests[0].Objectives, 1, "legacy goal is listed as the single objective")
	assert.Equal(t, 4, resp.Quests[0].Objectives[0].RequiredAmount)
	assert.NotEmpty(t, resp.Quests[0].Objectives[0].Description)
}

func TestGetTemplate(t *testing.T) {
	e := newEnv(t, "")
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/quests/miner", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/quests/none", "").Code)
}

func TestGetInstance_ReportsProgress(t *testing.T) {
	e := newEnv(t, "")
	v, _, _, err := e.svc.Issue(context.Background(), alex(), "miner")
	require.NoError(t, err)

	stone := quest.ActionContext{Action: quest.ActionBlockBreak, Material: "STONE", Quantity: 2}
	e.svc.OnAction(context.Background(), alex(), stone, []string{v.InstanceID})

	w := e.do(http.MethodGet, "/api/instances/"+v.InstanceID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got quest.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "p1", got.OwnerID)
	assert.Equal(t, 50, got.Percent)
	assert.False(t, got.Complete)
	assert.False(t, got.Redeemed)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/instances/missing", "").Code)
}

func TestListPlayerInstances(t *testing.T) {
	e := newEnv(t, "")
	w := e.do(http.MethodGet, "/api/players/p1/instances", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(0), resp["count"])
	assert.Equal(t, []interface{}{}, resp["instances"])

	v, _, _, err := e.svc.Issue(context.Background(), alex(), "miner")
	require.NoError(t, err)
	stone := quest.ActionContext{Action: quest.ActionBlockBreak, Material: "STONE"}
	e.svc.OnAction(context.Background(), alex(), stone, []string{v.InstanceID})

	resp = decode(t, e.do(http.MethodGet, "/api/players/p1/instances", ""))
	assert.Equal(t, float64(1), resp["count"])
	assert.Equal(t, float64(1), resp["active"])
}
