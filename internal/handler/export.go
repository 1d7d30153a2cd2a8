package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"clipcast/internal/dto"
	"clipcast/internal/response"
	"clipcast/internal/types"
)

func (h *Handler) SubmitExport(c *gin.Context) {
	jobId, err := h.Service.SubmitExport(c.Param("sessionId"))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, dto.SubmitExportResp{JobId: jobId})
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Service.GetJob(c.Param("jobId"))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, jobResp(job))
}

func (h *Handler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, err := h.Service.ListJobs(c.Param("sessionId"), limit)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}

	out := make([]dto.JobResp, len(jobs))
	for i := range jobs {
		out[i] = jobResp(&jobs[i])
	}
	response.Success(c, out)
}

func jobResp(job *types.ExportJob) dto.JobResp {
	return dto.JobResp{
		JobId:      job.JobId,
		SessionId:  job.SessionId,
		Status:     job.Status,
		Progress:   job.Progress,
		ResultUrl:  job.ResultUrl,
		FailReason: job.FailReason,
	}
}
