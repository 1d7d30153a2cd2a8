package router

import (
	"github.com/gin-gonic/gin"

	"clipcast/internal/handler"
	"clipcast/internal/notify"
	"clipcast/internal/service"
)

func SetupRouter(r *gin.Engine, svc *service.Service, hub *notify.Hub) {
	api := r.Group("/api")

	hdl := handler.NewHandler(svc)
	{
		api.POST("/session", hdl.CreateSession)
		api.GET("/session/:sessionId", hdl.GetSession)
		api.DELETE("/session/:sessionId", hdl.CloseSession)
		api.POST("/session/:sessionId/timeline", hdl.UpdateTimeline)
		api.POST("/session/:sessionId/prepare", hdl.PrepareSession)

		// Playback controls
		api.POST("/session/:sessionId/play", hdl.Play)
		api.POST("/session/:sessionId/playScene", hdl.PlayScene)
		api.POST("/session/:sessionId/playGroup", hdl.PlayGroup)
		api.POST("/session/:sessionId/pause", hdl.Pause)
		api.POST("/session/:sessionId/seek", hdl.Seek)

		// Editing
		api.POST("/session/:sessionId/editMode", hdl.SetEditMode)
		api.POST("/session/:sessionId/transform", hdl.CommitTransform)

		// Export
		api.POST("/session/:sessionId/export", hdl.SubmitExport)
		api.GET("/session/:sessionId/jobs", hdl.ListJobs)
		api.GET("/job/:jobId", hdl.GetJob)
	}

	// Event push: job status and playback state.
	r.GET("/ws", hub.HandleWS)
}
