package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/models"
	internalsettings "github.com/nextgenbank/backoffice/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SettingHandler manages admin CRUD for settings values.
type SettingHandler struct {
	db *gorm.DB // Database handle for settings.
}

// NewSettingHandler constructs a settings handler.
func NewSettingHandler(db *gorm.DB) *SettingHandler {
	return &SettingHandler{db: db}
}

// createSettingRequest captures the payload for creating a setting.
type createSettingRequest struct {
	Key   string          `json:"key"`   // Setting key.
	Value json.RawMessage `json:"value"` // JSON value payload.
}

var positiveIntSettingKeys = map[string]struct{}{
	internalsettings.RateLimitWindowSecondsKey: {},
	internalsettings.ProfileListPageSizeKey:    {},
}

var nonNegativeIntSettingKeys = map[string]struct{}{
	internalsettings.RateLimitKey:         {},
	internalsettings.RateLimitPerEmailKey: {},
	internalsettings.RateLimitRedisDBKey:  {},
}

var boolSettingKeys = map[string]struct{}{
	internalsettings.RateLimitRedisEnabledKey: {},
}

var (
	errSettingExists   = apperr.New(apperr.KindConflict, "setting_exists", "key already exists", "")
	errSettingNotFound = apperr.New(apperr.KindNotFound, "setting_not_found", "not found", "")
	errSettingInvalid  = apperr.New(apperr.KindValidation, "invalid_setting", "invalid setting", "")
)

var errPositiveIntegerValue = errors.New("value must be a positive integer")
var errNonNegativeIntegerValue = errors.New("value must be a non-negative integer")
var errBooleanValue = errors.New("value must be a boolean")

// Create validates and inserts a setting, then refreshes the snapshot.
func (h *SettingHandler) Create(c *gin.Context) {
	var body createSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}

	key := strings.TrimSpace(body.Key)
	if key == "" {
		respond.Error(c, errSettingInvalid.WithMessage("key is required"))
		return
	}

	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		respond.Error(c, errSettingInvalid.WithMessage(errValidate.Error()))
		return
	}

	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Setting{}).Where("key = ?", key).Count(&count).Error; errCount != nil {
		respond.Error(c, apperr.Internal("check setting", errCount))
		return
	}
	if count > 0 {
		respond.Error(c, errSettingExists)
		return
	}

	setting := models.Setting{
		Key:   key,
		Value: datatypes.JSON(body.Value),
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&setting).Error; errCreate != nil {
		respond.Error(c, apperr.Internal("create setting", errCreate))
		return
	}
	if errRefresh := internalsettings.Reload(c.Request.Context(), h.db); errRefresh != nil {
		respond.Error(c, apperr.Internal("refresh settings snapshot", errRefresh))
		return
	}
	c.JSON(http.StatusCreated, h.formatSetting(&setting))
}

// List returns all settings sorted by key.
func (h *SettingHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Order("key ASC").Find(&rows).Error; errFind != nil {
		respond.Error(c, apperr.Internal("list settings", errFind))
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatSetting(&row))
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// Get returns a setting by key.
func (h *SettingHandler) Get(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	var setting models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&setting).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respond.Error(c, errSettingNotFound)
			return
		}
		respond.Error(c, apperr.Internal("get setting", errFind))
		return
	}
	c.JSON(http.StatusOK, h.formatSetting(&setting))
}

// updateSettingRequest captures the payload for updating a setting.
type updateSettingRequest struct {
	Value json.RawMessage `json:"value"` // New JSON value.
}

// Update updates a setting value and refreshes the snapshot.
func (h *SettingHandler) Update(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	var body updateSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}

	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		respond.Error(c, errSettingInvalid.WithMessage(errValidate.Error()))
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Setting{}).Where("key = ?", key).
		Update("value", datatypes.JSON(body.Value))
	if res.Error != nil {
		respond.Error(c, apperr.Internal("update setting", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		respond.Error(c, errSettingNotFound)
		return
	}
	if errRefresh := internalsettings.Reload(c.Request.Context(), h.db); errRefresh != nil {
		respond.Error(c, apperr.Internal("refresh settings snapshot", errRefresh))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a setting and refreshes the snapshot.
func (h *SettingHandler) Delete(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	res := h.db.WithContext(c.Request.Context()).Where("key = ?", key).Delete(&models.Setting{})
	if res.Error != nil {
		respond.Error(c, apperr.Internal("delete setting", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		respond.Error(c, errSettingNotFound)
		return
	}
	if errRefresh := internalsettings.Reload(c.Request.Context(), h.db); errRefresh != nil {
		respond.Error(c, apperr.Internal("refresh settings snapshot", errRefresh))
		return
	}
	c.Status(http.StatusNoContent)
}

func validateSettingValue(key string, value json.RawMessage) error {
	if len(bytes.TrimSpace(value)) == 0 || !json.Valid(value) {
		return errors.New("value must be valid json")
	}
	if _, ok := positiveIntSettingKeys[key]; ok {
		if parsed, okParse := parseNonNegativeInt(value); !okParse || parsed == 0 {
			return errPositiveIntegerValue
		}
		return nil
	}
	if _, ok := nonNegativeIntSettingKeys[key]; ok {
		if _, okParse := parseNonNegativeInt(value); !okParse {
			return errNonNegativeIntegerValue
		}
		return nil
	}
	if _, ok := boolSettingKeys[key]; ok {
		var parsed bool
		if errUnmarshal := json.Unmarshal(value, &parsed); errUnmarshal != nil {
			return errBooleanValue
		}
	}
	return nil
}

func parseNonNegativeInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var parsedInt int
	if errUnmarshalInt := json.Unmarshal(raw, &parsedInt); errUnmarshalInt == nil {
		return parsedInt, parsedInt >= 0
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(parsedString))
		if errParse != nil {
			return 0, false
		}
		return parsed, parsed >= 0
	}
	var parsedFloat float64
	if errUnmarshalFloat := json.Unmarshal(raw, &parsedFloat); errUnmarshalFloat == nil {
		if math.IsNaN(parsedFloat) || math.IsInf(parsedFloat, 0) {
			return 0, false
		}
		if parsedFloat < 0 || parsedFloat != math.Trunc(parsedFloat) {
			return 0, false
		}
		return int(parsedFloat), true
	}
	return 0, false
}

// formatSetting formats a setting row into response JSON.
func (h *SettingHandler) formatSetting(s *models.Setting) gin.H {
	return gin.H{
		"key":        s.Key,
		"value":      json.RawMessage(s.Value),
		"updated_at": s.UpdatedAt,
	}
}
