// Package dto defines the request/response shapes of the preview API.
package dto

import "clipcast/internal/types"

type CreateSessionReq struct {
	Timeline types.Timeline `json:"timeline" binding:"required"`
}

type CreateSessionResp struct {
	SessionId string `json:"session_id"`
}

type UpdateTimelineReq struct {
	Timeline types.Timeline `json:"timeline" binding:"required"`
}

type PrepareReq struct {
	ForceRegenerate bool `json:"force_regenerate"`
}

type PlaySceneReq struct {
	SceneIndex int `json:"scene_index"`
}

type PlayGroupReq struct {
	SceneId string `json:"scene_id" binding:"required"`
}

type SeekReq struct {
	Time float64 `json:"time"`
}

type EditModeReq struct {
	Enabled bool `json:"enabled"`
}

type CommitTransformReq struct {
	SceneIndex int             `json:"scene_index"`
	Target     string          `json:"target" binding:"required,oneof=image text"`
	Transform  types.Transform `json:"transform"`
}

type SessionResp struct {
	SessionId string              `json:"session_id"`
	Timeline  *types.Timeline     `json:"timeline"`
	State     types.PlaybackState `json:"state"`
}

type SubmitExportResp struct {
	JobId string `json:"job_id"`
}

type JobResp struct {
	JobId      string  `json:"job_id"`
	SessionId  string  `json:"session_id"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	ResultUrl  string  `json:"result_url,omitempty"`
	FailReason string  `json:"fail_reason,omitempty"`
}
