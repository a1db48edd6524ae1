package admin

import (
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetOperatingHoursSetting 营业时间配置
func (h *Handler) GetOperatingHoursSetting(c *gin.Context) {
	setting, err := h.OperatingHoursService.Schedule(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "fetch setting failed", err)
		return
	}
	response.Success(c, setting)
}

// UpdateOperatingHoursSetting 更新营业时间配置
func (h *Handler) UpdateOperatingHoursSetting(c *gin.Context) {
	var req service.OperatingHoursSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	setting, err := h.SettingService.UpdateOperatingHoursSetting(c.Request.Context(), req)
	if err != nil {
		respondWithMappedError(c, err, "update setting failed")
		return
	}
	h.audit(c, service.AuditActionSettingUpdate, "setting", 0, models.JSON{"key": constants.SettingKeyOperatingHours, "value": service.OperatingHoursSettingToMap(setting)})
	response.Success(c, setting)
}

// GetCapacitySetting 负载自动开关店配置
func (h *Handler) GetCapacitySetting(c *gin.Context) {
	setting, err := h.SettingService.GetCapacitySetting(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "fetch setting failed", err)
		return
	}
	response.Success(c, setting)
}

// UpdateCapacitySetting 更新负载配置并同步到营业状态
func (h *Handler) UpdateCapacitySetting(c *gin.Context) {
	var req service.CapacitySetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	state, err := h.CapacityService.UpdateConfig(c.Request.Context(), req)
	if err != nil {
		respondWithMappedError(c, err, "update setting failed")
		return
	}
	h.audit(c, service.AuditActionSettingUpdate, "setting", 0, models.JSON{"key": constants.SettingKeyCapacity, "value": service.CapacitySettingToMap(req)})
	response.Success(c, state)
}

// GetDispatchSetting 配送调度配置
func (h *Handler) GetDispatchSetting(c *gin.Context) {
	setting, err := h.SettingService.GetDispatchSetting(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "fetch setting failed", err)
		return
	}
	response.Success(c, setting)
}

// UpdateDispatchSetting 更新配送调度配置
func (h *Handler) UpdateDispatchSetting(c *gin.Context) {
	var req service.DispatchSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	setting, err := h.SettingService.UpdateDispatchSetting(c.Request.Context(), req)
	if err != nil {
		respondWithMappedError(c, err, "update setting failed")
		return
	}
	h.audit(c, service.AuditActionSettingUpdate, "setting", 0, models.JSON{"key": constants.SettingKeyDispatch, "value": service.DispatchSettingToMap(setting)})
	response.Success(c, setting)
}
