package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/service"
)

type postListQuery struct {
	Category  string `form:"category"`
	Tag       string `form:"tag"`
	Published *bool  `form:"published"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

type postSearchQuery struct {
	Query  string `form:"q"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// GetPosts 获取文章列表，可按分类或标签 slug 过滤
func (a *API) GetPosts(c *gin.Context) {
	var query postListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, http.StatusBadRequest, "无效的查询参数")
		return
	}

	page, err := a.posts.List(service.PostFilter{
		CategorySlug: query.Category,
		TagSlug:      query.Tag,
		Published:    query.Published,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		respondServiceError(c, err, "获取文章列表失败")
		return
	}
	c.JSON(http.StatusOK, postPagePayload(page))
}

// SearchPosts 按标题、正文和去重音标题搜索文章
func (a *API) SearchPosts(c *gin.Context) {
	var query postSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, http.StatusBadRequest, "无效的查询参数")
		return
	}

	page, err := a.posts.Search(query.Query, query.Limit, query.Offset)
	if err != nil {
		respondServiceError(c, err, "搜索文章失败")
		return
	}

	payload := postPagePayload(page)
	payload["query"] = query.Query
	c.JSON(http.StatusOK, payload)
}

// GetPost 获取文章详情
func (a *API) GetPost(c *gin.Context) {
	post, err := a.posts.Get(c.Param("slug"))
	if err != nil {
		respondServiceError(c, err, "获取文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": postPayload(post)})
}

// CreatePost 创建新文章，表单为 multipart/form-data
func (a *API) CreatePost(c *gin.Context) {
	identity, _ := currentIdentity(c)

	input, err := postInputFromForm(c)
	if err != nil {
		respondServiceError(c, err, "解析文章表单失败")
		return
	}

	post, err := a.posts.Create(c.Request.Context(), identity, input)
	if err != nil {
		respondServiceError(c, err, "创建文章失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "文章创建成功", "post": postPayload(post)})
}

// UpdatePost 更新文章，未提交的字段保持不变
func (a *API) UpdatePost(c *gin.Context) {
	identity, _ := currentIdentity(c)

	input, err := postInputFromForm(c)
	if err != nil {
		respondServiceError(c, err, "解析文章表单失败")
		return
	}

	post, err := a.posts.Update(c.Request.Context(), identity, c.Param("slug"), input)
	if err != nil {
		respondServiceError(c, err, "更新文章失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "文章更新成功", "post": postPayload(post)})
}

// DeletePost 删除文章及其图片
func (a *API) DeletePost(c *gin.Context) {
	identity, _ := currentIdentity(c)

	if err := a.posts.Delete(c.Request.Context(), identity, c.Param("slug")); err != nil {
		respondServiceError(c, err, "删除文章失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "文章删除成功"})
}

func postInputFromForm(c *gin.Context) (service.PostInput, error) {
	input := service.PostInput{
		Title:         c.PostForm("title"),
		ContentFormat: c.PostForm("contentFormat"),
	}
	if content, ok := c.GetPostForm("content"); ok {
		input.Content = &content
	}

	categoryID, err := parseUintForm(c.PostForm("categoryId"))
	if err != nil {
		return input, &service.ValidationError{Message: "invalid category id", Fields: []string{"categoryId"}}
	}
	input.CategoryID = categoryID

	published, err := parseBoolForm(c, "published")
	if err != nil {
		return input, &service.ValidationError{Message: "invalid published flag", Fields: []string{"published"}}
	}
	input.Published = published

	featured, err := readImageFile(c, "featuredImage")
	if err != nil {
		return input, err
	}
	input.FeaturedImage = featured
	return input, nil
}

func postPagePayload(page *service.PostPage) gin.H {
	posts := make([]gin.H, 0, len(page.Posts))
	for i := range page.Posts {
		posts = append(posts, postPayload(&page.Posts[i]))
	}
	return gin.H{
		"posts":  posts,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	}
}

func postPayload(post *db.Post) gin.H {
	tags := make([]gin.H, 0, len(post.Tags))
	for _, tag := range post.Tags {
		tags = append(tags, gin.H{"id": tag.ID, "name": tag.Name, "slug": tag.Slug})
	}

	payload := gin.H{
		"id":                  post.ID,
		"title":               post.Title,
		"slug":                post.Slug,
		"content":             post.Content,
		"featuredImage":       post.FeaturedImage,
		"featuredImageWidth":  post.FeaturedImageWidth,
		"featuredImageHeight": post.FeaturedImageHeight,
		"published":           post.Published,
		"authorId":            post.AuthorID,
		"categoryId":          post.CategoryID,
		"version":             post.Version,
		"tags":                tags,
		"createdAt":           post.CreatedAt,
		"updatedAt":           post.UpdatedAt,
	}
	if post.Category.ID != 0 {
		payload["category"] = gin.H{"id": post.Category.ID, "name": post.Category.Name, "slug": post.Category.Slug}
	}
	if post.Author.ID != 0 {
		payload["author"] = gin.H{"id": post.Author.ID, "username": post.Author.Username, "name": post.Author.Name}
	}
	return payload
}
