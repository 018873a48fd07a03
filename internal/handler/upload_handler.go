package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UploadEditorImage 处理编辑器图片上传，文件先进入临时目录，保存文章时再移动
func (a *API) UploadEditorImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		// 兼容旧编辑器使用的字段名
		if file, err = c.FormFile("image"); err != nil {
			respondError(c, http.StatusBadRequest, "未找到上传的图片")
			return
		}
	}

	// 检查文件类型
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		respondError(c, http.StatusBadRequest, "只允许上传图片文件")
		return
	}

	upload, err := readMultipartImage(file)
	if err != nil {
		respondServiceError(c, err, "读取上传文件失败")
		return
	}

	url, err := a.uploads.UploadTemp(c.Request.Context(), upload)
	if err != nil {
		respondServiceError(c, err, "保存文件失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "上传成功", "url": url})
}

// CleanTempImages 清理超过保留时长仍未被文章引用的临时图片
func (a *API) CleanTempImages(c *gin.Context) {
	result, err := a.sweeper.Sweep(c.Request.Context(), a.tempTTL)
	if err != nil {
		respondServiceError(c, err, "清理临时图片失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "清理完成", "result": result})
}
