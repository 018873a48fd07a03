package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// GetCategories 获取分类列表
func (a *API) GetCategories(c *gin.Context) {
	categories, err := a.categories.List()
	if err != nil {
		respondServiceError(c, err, "获取分类列表失败")
		return
	}

	response := make([]gin.H, 0, len(categories))
	for _, category := range categories {
		response = append(response, gin.H{
			"id":          category.ID,
			"name":        category.Name,
			"slug":        category.Slug,
			"description": category.Description,
		})
	}
	c.JSON(http.StatusOK, gin.H{"categories": response})
}

// CreateCategory 创建分类
func (a *API) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req, "分类名称不能为空") {
		return
	}

	category, err := a.categories.Create(req.Name, req.Description)
	if err != nil {
		respondServiceError(c, err, "创建分类失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "分类创建成功",
		"category": gin.H{
			"id":          category.ID,
			"name":        category.Name,
			"slug":        category.Slug,
			"description": category.Description,
		},
	})
}

// DeleteCategory 删除分类，文章转入默认分类
func (a *API) DeleteCategory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分类ID")
		return
	}

	reassigned, err := a.categories.Delete(id)
	if err != nil {
		respondServiceError(c, err, "删除分类失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "分类删除成功", "reassigned": reassigned})
}
