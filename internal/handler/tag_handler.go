package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type tagRequest struct {
	Name string `json:"name" binding:"required"`
}

// GetTags 获取标签列表及使用次数
func (a *API) GetTags(c *gin.Context) {
	tags, err := a.tags.List()
	if err != nil {
		respondServiceError(c, err, "获取标签列表失败")
		return
	}

	response := make([]gin.H, 0, len(tags))
	for _, tag := range tags {
		response = append(response, gin.H{
			"id":        tag.ID,
			"name":      tag.Name,
			"slug":      tag.Slug,
			"postCount": tag.PostCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"tags": response})
}

// CreateTag 创建新标签
func (a *API) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req, "标签名称不能为空") {
		return
	}

	tag, err := a.tags.Create(req.Name)
	if err != nil {
		respondServiceError(c, err, "创建标签失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "标签创建成功", "tag": gin.H{"id": tag.ID, "name": tag.Name, "slug": tag.Slug}})
}

// DeleteTag 删除未被使用的标签
func (a *API) DeleteTag(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的标签ID")
		return
	}

	if err := a.tags.Delete(id); err != nil {
		respondServiceError(c, err, "删除标签失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "标签删除成功"})
}
