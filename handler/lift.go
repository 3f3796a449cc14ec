package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TIANLI0/LiftKit/config"
	"github.com/TIANLI0/LiftKit/model"
	"github.com/TIANLI0/LiftKit/service"
	"github.com/TIANLI0/LiftKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Lifter 抠图流水线
type Lifter interface {
	Available() bool
	Capability() service.Capability
	Lift(ctx context.Context, uri string) (*service.Cutout, error)
}

// CutoutStore 抠图记录存储
type CutoutStore interface {
	GetCutout(ctx context.Context, id string) (*model.CutoutRecord, error)
	SetCutout(ctx context.Context, record *model.CutoutRecord) error
	DeleteCutout(ctx context.Context, id string) error
}

type LiftHandler struct {
	cfg    *config.Config
	lifter Lifter
	store  CutoutStore
}

func NewLiftHandler(cfg *config.Config, lifter Lifter, store CutoutStore) *LiftHandler {
	return &LiftHandler{
		cfg:    cfg,
		lifter: lifter,
		store:  store,
	}
}

// Register 注册 API 路由
func (h *LiftHandler) Register(api *gin.RouterGroup) {
	api.GET("/capability", h.Capability)
	api.POST("/lift", h.Lift)
	api.GET("/cutouts/:id", h.GetCutout)
	api.GET("/cutouts/:id/info", h.GetCutoutInfo)
	api.DELETE("/cutouts/:id", h.DeleteCutout)
}

// Capability 返回当前构建是否支持抠图
func (h *LiftHandler) Capability(c *gin.Context) {
	resp := model.Capability{
		Available: h.lifter.Available(),
		Strategy:  h.lifter.Capability().String(),
	}
	if !resp.Available {
		resp.Remedy = service.UnavailableRemedy
	}
	c.JSON(http.StatusOK, resp)
}

// Lift 上传图片并抠出主体
func (h *LiftHandler) Lift(c *gin.Context) {
	if !h.lifter.Available() {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Success: false,
			Message: service.UnavailableRemedy,
			Kind:    service.KindOf(service.ErrUnavailable),
		})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Kind:    service.KindOf(service.ErrInvalidInput),
			Error:   err.Error(),
		})
		return
	}

	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
			Kind:    service.KindOf(service.ErrInvalidInput),
		})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusUnsupportedMediaType, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG/WebP",
			Kind:    service.KindOf(service.ErrInvalidImage),
		})
		return
	}

	if err := os.MkdirAll(h.cfg.Upload.UploadDir, 0755); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "保存文件失败",
			Error:   err.Error(),
		})
		return
	}

	id := utils.GenerateID()
	savePath := filepath.Join(h.cfg.Upload.UploadDir, id+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "保存文件失败",
			Error:   err.Error(),
		})
		return
	}

	if h.cfg.Upload.Cleanup {
		defer func() {
			if err := os.Remove(savePath); err != nil {
				utils.Logger.Warn("failed to delete uploaded source",
					zap.String("file", savePath),
					zap.Error(err))
			}
		}()
	}

	md5, err := utils.FileMD5(savePath)
	if err != nil {
		utils.Logger.Warn("failed to calculate md5", zap.Error(err))
	}

	utils.Logger.Info("source uploaded",
		zap.String("id", id),
		zap.String("filename", file.Filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	ctx := c.Request.Context()
	cutout, err := h.lifter.Lift(ctx, savePath)
	if err != nil {
		c.Error(err)
		c.JSON(statusFor(err), model.ErrorResponse{
			Success: false,
			Message: "无法从图片中抠出主体",
			Kind:    service.KindOf(err),
			Error:   err.Error(),
		})
		return
	}

	record := &model.CutoutRecord{
		ID:        id,
		Path:      cutout.Path,
		URI:       utils.FileURI(cutout.Path),
		SourceMD5: md5,
		Width:     cutout.Width,
		Height:    cutout.Height,
		Strategy:  cutout.Strategy.String(),
		Timestamp: time.Now().Unix(),
	}

	if err := h.store.SetCutout(ctx, record); err != nil {
		utils.Logger.Warn("failed to save cutout record", zap.String("id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, model.LiftResponse{
		Success: true,
		Message: "抠图成功",
		Data:    record,
	})
}

// GetCutout 返回抠图 PNG
func (h *LiftHandler) GetCutout(c *gin.Context) {
	record, ok := h.lookup(c)
	if !ok {
		return
	}

	if _, err := os.Stat(record.Path); err != nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "抠图文件已过期",
		})
		return
	}

	c.File(record.Path)
}

// GetCutoutInfo 返回抠图记录
func (h *LiftHandler) GetCutoutInfo(c *gin.Context) {
	record, ok := h.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, model.LiftResponse{
		Success: true,
		Message: "查询成功",
		Data:    record,
	})
}

// DeleteCutout 删除抠图文件和记录
func (h *LiftHandler) DeleteCutout(c *gin.Context) {
	record, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := os.Remove(record.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "删除抠图文件失败",
			Error:   err.Error(),
		})
		return
	}

	if err := h.store.DeleteCutout(c.Request.Context(), record.ID); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "删除抠图记录失败",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.LiftResponse{
		Success: true,
		Message: "删除成功",
		Data:    record,
	})
}

func (h *LiftHandler) lookup(c *gin.Context) (*model.CutoutRecord, bool) {
	id := c.Param("id")
	record, err := h.store.GetCutout(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return nil, false
	}

	if record == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该抠图",
		})
		return nil, false
	}

	return record, true
}

func (h *LiftHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// statusFor 把流水线错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrInvalidSourceBuffer), errors.Is(err, service.ErrRequestFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
