package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questtoken/game/condition"
	"github.com/kasuganosora/questtoken/game/player"
	"github.com/kasuganosora/questtoken/game/quest"
	mw "github.com/kasuganosora/questtoken/middleware"
	"go.uber.org/zap"
)

// PlayerHandler runs the quest operations on behalf of an authenticated
// player. The game host reports the player's current state in each request.
type PlayerHandler struct {
	svc    *quest.Service
	logger *zap.Logger
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(svc *quest.Service, logger *zap.Logger) *PlayerHandler {
	return &PlayerHandler{svc: svc, logger: logger}
}

type playerState struct {
	Name        string   `json:"name"`
	Level       int      `json:"level"`
	World       string   `json:"world"`
	Time        string   `json:"time"` // day | night
	GameMode    string   `json:"game_mode"`
	Permissions []string `json:"permissions"`
}

func (s playerState) snapshot(id string) *player.Snapshot {
	p := &player.Snapshot{
		PlayerID:    id,
		PlayerName:  s.Name,
		PlayerLevel: s.Level,
		World:       s.World,
		Mode:        s.GameMode,
		Permissions: make(map[string]bool, len(s.Permissions)),
	}
	if s.Time == "night" {
		p.Time = player.Night
	}
	for _, node := range s.Permissions {
		p.Permissions[node] = true
	}
	return p
}

type entityPayload struct {
	Type     string `json:"type"`
	Category string `json:"category"`
}

type actionPayload struct {
	Action      string        `json:"action" binding:"required"`
	Material    string        `json:"material"`
	Entity      entityPayload `json:"entity"`
	Command     string        `json:"command"`
	Placeholder string        `json:"placeholder"`
	Value       float64       `json:"value"`
	Quantity    int           `json:"quantity"`
}

func (a actionPayload) context() quest.ActionContext {
	return quest.ActionContext{
		Action:      quest.Action(a.Action),
		Material:    a.Material,
		Entity:      quest.Entity{Type: a.Entity.Type, Category: quest.EntityCategory(a.Entity.Category)},
		Command:     a.Command,
		Placeholder: a.Placeholder,
		Value:       a.Value,
		Quantity:    a.Quantity,
	}
}

type outcomeInfo struct {
	OK        bool   `json:"ok"`
	Condition string `json:"condition,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func toOutcomeInfo(o condition.Outcome) outcomeInfo {
	return outcomeInfo{OK: o.OK(), Condition: o.Condition, Reason: o.Reason}
}

type issueRequest struct {
	Player playerState `json:"player"`
}

// Issue creates a token of a quest for the player.
// POST /api/players/:id/quests/:quest/issue
func (h *PlayerHandler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := req.Player.snapshot(mw.GetPlayerID(c))

	view, att, out, err := h.svc.Issue(c.Request.Context(), p, c.Param("quest"))
	if errors.Is(err, quest.ErrUnknownTemplate) {
		c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		return
	}
	if err != nil {
		h.logger.Error("issue failed", zap.String("quest_id", c.Param("quest")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue failed"})
		return
	}
	if !out.OK() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"outcome": toOutcomeInfo(out)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"outcome":  toOutcomeInfo(out),
		"instance": view,
		"token":    att,
	})
}

type actionRequest struct {
	Player playerState   `json:"player"`
	Held   []string      `json:"held"`
	Action actionPayload `json:"action" binding:"required"`
}

// Action applies one gameplay action to the instances the player holds, in
// the order given.
// POST /api/players/:id/actions
func (h *PlayerHandler) Action(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := req.Player.snapshot(mw.GetPlayerID(c))

	events := h.svc.OnAction(c.Request.Context(), p, req.Action.context(), req.Held)
	if events == nil {
		events = []quest.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

type redeemRequest struct {
	Player playerState `json:"player"`
}

// CheckRedeem reports whether the player could redeem the instance now.
// Nothing is spent.
// POST /api/players/:id/instances/:instance/redeem/check
func (h *PlayerHandler) CheckRedeem(c *gin.Context) {
	h.redeem(c, false)
}

// Redeem redeems a completed instance.
// POST /api/players/:id/instances/:instance/redeem
func (h *PlayerHandler) Redeem(c *gin.Context) {
	h.redeem(c, true)
}

func (h *PlayerHandler) redeem(c *gin.Context, commit bool) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := req.Player.snapshot(mw.GetPlayerID(c))
	id := c.Param("instance")

	var (
		out condition.Outcome
		err error
	)
	if commit {
		out, err = h.svc.Redeem(c.Request.Context(), p, id)
	} else {
		out, err = h.svc.CheckRedeem(p, id)
	}
	switch {
	case errors.Is(err, quest.ErrUnknownInstance), errors.Is(err, quest.ErrUnknownTemplate):
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
	case err != nil:
		h.logger.Error("redeem failed", zap.String("instance_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redeem failed"})
	case commit && !out.OK():
		c.JSON(http.StatusUnprocessableEntity, gin.H{"outcome": toOutcomeInfo(out)})
	default:
		c.JSON(http.StatusOK, gin.H{"outcome": toOutcomeInfo(out)})
	}
}
