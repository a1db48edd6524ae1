package admin

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func parseCommissionReportInput(c *gin.Context) (service.CommissionReportInput, bool) {
	var input service.CommissionReportInput
	if raw := strings.TrimSpace(c.Query("referrer_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "referrer_id invalid", err)
			return input, false
		}
		input.ReferrerID = uint(id)
	}
	from, err := handlershared.ParseTimeNullable(c.Query("from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "from invalid", err)
		return input, false
	}
	to, err := handlershared.ParseTimeNullable(c.Query("to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "to invalid", err)
		return input, false
	}
	input.From = from
	input.To = to
	return input, true
}

// GetCommissionSummary 按推荐人汇总佣金
func (h *Handler) GetCommissionSummary(c *gin.Context) {
	input, ok := parseCommissionReportInput(c)
	if !ok {
		return
	}
	report, err := h.ReportService.Summary(c.Request.Context(), input)
	if err != nil {
		respondWithMappedError(c, err, "fetch commission report failed")
		return
	}
	response.Success(c, report)
}

// ListCommissions 佣金台账明细
func (h *Handler) ListCommissions(c *gin.Context) {
	input, ok := parseCommissionReportInput(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)
	records, total, err := h.ReportService.ListCommissions(c.Request.Context(), input, page, pageSize)
	if err != nil {
		respondWithMappedError(c, err, "fetch commissions failed")
		return
	}
	response.SuccessWithPage(c, records, handlershared.BuildPagination(page, pageSize, total))
}

// ExportCommissions 导出佣金报表 xlsx
func (h *Handler) ExportCommissions(c *gin.Context) {
	input, ok := parseCommissionReportInput(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.ReportService.ExportCommissions(c.Request.Context(), input, &buf); err != nil {
		respondWithMappedError(c, err, "export commissions failed")
		return
	}
	filename := fmt.Sprintf("commissions_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(200, xlsxContentType, buf.Bytes())
}

// GetAttributionByPhone 查询顾客归因（首次触达推荐人）
func (h *Handler) GetAttributionByPhone(c *gin.Context) {
	phone, err := service.NormalizePhone(c.Param("phone"), h.Config.Restaurant.CountryCode)
	if err != nil {
		respondWithMappedError(c, err, "phone invalid")
		return
	}
	attribution, err := h.ReportService.AttributionByPhone(c.Request.Context(), phone)
	if err != nil {
		respondWithMappedError(c, err, "fetch attribution failed")
		return
	}
	response.Success(c, attribution)
}
