package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"

	"github.com/go-playground/validator/v10"
)

var settingValidate = newSettingValidator()

func newSettingValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := clock.ParseHHMM(fl.Field().String())
		return err == nil
	})
	v.RegisterStructValidation(dayHoursStructLevel, DayHours{})
	return v
}

// validateSetting 以 validator 规则校验配置，错误统一包装为 ErrSettingInvalid
func validateSetting(value interface{}) error {
	if err := settingValidate.Struct(value); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("%w: %s failed on %s", ErrSettingInvalid, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w: %v", ErrSettingInvalid, err)
	}
	return nil
}

func normalizeSettingValueByKey(key string, value map[string]interface{}) (models.JSON, error) {
	switch strings.TrimSpace(key) {
	case constants.SettingKeyOperatingHours:
		setting := operatingHoursSettingFromJSON(models.JSON(value), OperatingHoursDefaultSetting())
		if err := ValidateOperatingHoursSetting(setting); err != nil {
			return nil, err
		}
		return models.JSON(OperatingHoursSettingToMap(setting)), nil
	case constants.SettingKeyCapacity:
		setting := capacitySettingFromJSON(models.JSON(value), CapacityDefaultSetting())
		if err := ValidateCapacitySetting(setting); err != nil {
			return nil, err
		}
		return models.JSON(CapacitySettingToMap(setting)), nil
	case constants.SettingKeyDispatch:
		setting := dispatchSettingFromJSON(models.JSON(value), DispatchDefaultSetting())
		if err := ValidateDispatchSetting(setting); err != nil {
			return nil, err
		}
		return models.JSON(DispatchSettingToMap(setting)), nil
	default:
		return models.JSON(value), nil
	}
}
