package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	mw "github.com/kasuganosora/questtoken/middleware"
)

// Handlers groups the handlers mounted by Register. Events may be nil.
type Handlers struct {
	Quest   *QuestHandler
	Player  *PlayerHandler
	Session *SessionHandler
	Admin   *AdminHandler
	Events  gin.HandlerFunc
}

// Register mounts the health check and every /api route on r.
// Admin routes are guarded by the X-Admin-Key header, player routes by
// playerAuth.
func Register(r *gin.Engine, h Handlers, adminKey string, playerAuth gin.HandlerFunc) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/quests", h.Quest.ListTemplates)
		api.GET("/quests/:id", h.Quest.GetTemplate)
		api.GET("/instances/:id", h.Quest.GetInstance)
		api.GET("/players/:id/instances", h.Quest.ListPlayerInstances)

		playerG := api.Group("/players/:id")
		playerG.Use(playerAuth)
		playerG.POST("/quests/:quest/issue", h.Player.Issue)
		playerG.POST("/actions", h.Player.Action)
		playerG.POST("/instances/:instance/redeem/check", h.Player.CheckRedeem)
		playerG.POST("/instances/:instance/redeem", h.Player.Redeem)
		playerG.POST("/logout", h.Session.Logout)
		if h.Events != nil {
			playerG.GET("/events", h.Events)
		}

		adminG := api.Group("/admin")
		adminG.Use(mw.AdminKey(adminKey))
		adminG.GET("/metrics", h.Admin.Metrics)
		adminG.POST("/save", h.Admin.Save)
		adminG.POST("/players/:id/session", h.Session.Create)
		adminG.DELETE("/instances/:id", h.Admin.RemoveInstance)
		adminG.GET("/instances/:id/history", h.Admin.History)
		adminG.GET("/scheduler", h.Admin.ListSchedulerTasks)
	}
}
