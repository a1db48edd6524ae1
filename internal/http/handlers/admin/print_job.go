package admin

import (
	"strings"

	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/repository"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListPrintJobs 打印任务列表
func (h *Handler) ListPrintJobs(c *gin.Context) {
	page, pageSize := handlershared.PageQuery(c)
	jobs, total, err := h.PrintService.List(c.Request.Context(), repository.PrintJobListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "fetch print jobs failed", err)
		return
	}
	response.SuccessWithPage(c, jobs, handlershared.BuildPagination(page, pageSize, total))
}

// RetryPrintJob 重新打印（失败任务重置后重新投递）
func (h *Handler) RetryPrintJob(c *gin.Context) {
	jobID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	job, err := h.PrintService.Retry(c.Request.Context(), jobID)
	if err != nil {
		respondWithMappedError(c, err, "retry print job failed")
		return
	}
	h.audit(c, service.AuditActionPrintRetry, "print_job", job.ID, nil)
	response.Success(c, job)
}
