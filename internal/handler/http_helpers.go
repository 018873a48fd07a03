package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/logger"
	"github.com/postdesk/internal/service"
	"gorm.io/gorm"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondServiceError 将 service 层错误映射为 HTTP 状态码
func respondServiceError(c *gin.Context, err error, fallback string) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "fields": validation.Fields})
	case errors.Is(err, service.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, "请求参数无效")
	case errors.Is(err, service.ErrPermissionDenied):
		respondError(c, http.StatusForbidden, "无权操作该文章")
	case errors.Is(err, service.ErrPostNotFound):
		respondError(c, http.StatusNotFound, "文章不存在")
	case errors.Is(err, service.ErrCategoryNotFound):
		respondError(c, http.StatusNotFound, "分类不存在")
	case errors.Is(err, service.ErrTagNotFound):
		respondError(c, http.StatusNotFound, "标签不存在")
	case errors.Is(err, service.ErrPostConflict):
		respondError(c, http.StatusConflict, "文章已被其他请求修改，请刷新后重试")
	case errors.Is(err, service.ErrCategoryExists):
		respondError(c, http.StatusConflict, "分类已存在")
	case errors.Is(err, service.ErrTagExists):
		respondError(c, http.StatusConflict, "标签已存在")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		respondError(c, http.StatusConflict, "数据已存在，请重试")
	case errors.Is(err, service.ErrCategoryInUse):
		respondError(c, http.StatusBadRequest, "默认分类仍有文章，无法删除")
	case errors.Is(err, service.ErrTagInUse):
		respondError(c, http.StatusBadRequest, "标签正在被文章使用，无法删除")
	default:
		logger.Get().Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg(fallback)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseUintForm(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func parseBoolForm(c *gin.Context, key string) (*bool, error) {
	raw, ok := c.GetPostForm(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// readImageFile 读取表单中的图片文件，字段缺失时返回 nil
func readImageFile(c *gin.Context, field string) (*service.ImageUpload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	return readMultipartImage(file)
}

func readMultipartImage(file *multipart.FileHeader) (*service.ImageUpload, error) {
	if file.Size > service.MaxImageSize {
		return nil, &service.ValidationError{Message: "image is too large", Fields: []string{file.Filename}}
	}

	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, service.MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	return &service.ImageUpload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
