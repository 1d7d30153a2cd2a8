package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clipcast/internal/dto"
	"clipcast/internal/response"
	"clipcast/log"
	apperrors "clipcast/pkg/errors"
)

func (h *Handler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		log.GetLogger().Error("CreateSession ShouldBindJSON err", zap.Error(err))
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err))
		return
	}

	sessionId, err := h.Service.CreateSession(req.Timeline)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, dto.CreateSessionResp{SessionId: sessionId})
}

func (h *Handler) GetSession(c *gin.Context) {
	sessionId := c.Param("sessionId")

	tl, state, err := h.Service.State(sessionId)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, dto.SessionResp{
		SessionId: sessionId,
		Timeline:  tl,
		State:     state,
	})
}

func (h *Handler) UpdateTimeline(c *gin.Context) {
	var req dto.UpdateTimelineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		log.GetLogger().Error("UpdateTimeline ShouldBindJSON err", zap.Error(err))
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err))
		return
	}

	if err := h.Service.UpdateTimeline(c.Param("sessionId"), req.Timeline); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) PrepareSession(c *gin.Context) {
	var req dto.PrepareReq
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err))
		return
	}

	if err := h.Service.Prepare(c.Request.Context(), c.Param("sessionId"), req.ForceRegenerate); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) Play(c *gin.Context) {
	if err := h.Service.Play(c.Param("sessionId")); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) PlayScene(c *gin.Context) {
	var req dto.PlaySceneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err))
		return
	}

	if err := h.Service.PlayScene(c.Param("sessionId"), req.SceneIndex); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) PlayGroup(c *gin.Context) {
	var req dto.PlayGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err))
		return
	}

	if err := h.Service.PlayGroup(c.Param("sessionId"), req.SceneId); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) Pause(c *gin.Context) {
	if err := h.Service.Pause(c.Param("sessionId")); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) Seek(c *gin.Context) {
	var req dto.SeekReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err))
		return
	}

	if err := h.Service.Seek(c.Param("sessionId"), req.Time); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) SetEditMode(c *gin.Context) {
	var req dto.EditModeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err))
		return
	}

	if err := h.Service.SetEditMode(c.Param("sessionId"), req.Enabled); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) CommitTransform(c *gin.Context) {
	var req dto.CommitTransformReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err))
		return
	}

	if err := h.Service.CommitTransform(c.Param("sessionId"), req.SceneIndex, req.Target, req.Transform); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.Service.CloseSession(c.Param("sessionId")); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}
