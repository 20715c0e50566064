package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questtoken/game/quest"
)

// QuestHandler serves read-only template and instance endpoints.
type QuestHandler struct {
	svc *quest.Service
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(svc *quest.Service) *QuestHandler {
	return &QuestHandler{svc: svc}
}

type objectiveInfo struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	RequiredAmount int    `json:"required_amount"`
	Description    string `json:"description"`
}

type templateInfo struct {
	ID           string          `json:"id"`
	DisplayName  string          `json:"display_name"`
	Description  string          `json:"description,omitempty"`
	Sequential   bool            `json:"sequential"`
	LockToPlayer bool            `json:"lock_to_player"`
	Permission   string          `json:"permission,omitempty"`
	Tier         string          `json:"tier,omitempty"`
	Difficulty   string          `json:"difficulty,omitempty"`
	Milestones   []int           `json:"milestones,omitempty"`
	Objectives   []objectiveInfo `json:"objectives"`
}

func toTemplateInfo(t *quest.Template) templateInfo {
	info := templateInfo{
		ID:           t.ID,
		DisplayName:  t.DisplayName,
		Description:  t.Description,
		Sequential:   t.Sequential,
		LockToPlayer: t.LockToPlayer,
		Permission:   t.Permission,
		Tier:         t.Tier,
		Difficulty:   t.Difficulty,
		Milestones:   t.Milestones,
	}
	objs := t.Objectives
	if !t.HasObjectives() {
		objs = []quest.Objective{t.Goal}
	}
	for i := range objs {
		o := &objs[i]
		info.Objectives = append(info.Objectives, objectiveInfo{
			ID:             o.ID,
			Kind:           string(o.Kind),
			RequiredAmount: o.RequiredAmount,
			Description:    o.Description(),
		})
	}
	return info
}

// ListTemplates returns every registered template.
// GET /api/quests
func (h *QuestHandler) ListTemplates(c *gin.Context) {
	all := h.svc.Registry().All()
	out := make([]templateInfo, 0, len(all))
	for _, t := range all {
		out = append(out, toTemplateInfo(t))
	}
	c.JSON(http.StatusOK, gin.H{"quests": out, "count": len(out)})
}

// GetTemplate returns one template.
// GET /api/quests/:id
func (h *QuestHandler) GetTemplate(c *gin.Context) {
	t, ok := h.svc.Registry().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		return
	}
	c.JSON(http.StatusOK, toTemplateInfo(t))
}

// GetInstance returns the progress view of one instance.
// GET /api/instances/:id
func (h *QuestHandler) GetInstance(c *gin.Context) {
	v, ok := h.svc.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}
	c.JSON(http.StatusOK, v)
}

// ListPlayerInstances returns the instances bound to a player.
// GET /api/players/:id/instances
func (h *QuestHandler) ListPlayerInstances(c *gin.Context) {
	views := h.svc.InstancesOwnedBy(c.Param("id"))
	if views == nil {
		views = []quest.View{}
	}
	c.JSON(http.StatusOK, gin.H{
		"instances": views,
		"count":     len(views),
		"active":    h.svc.ActiveCount(c.Param("id")),
	})
}
