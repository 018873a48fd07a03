package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/handler"
)

// Options 描述路由需要的外部配置
type Options struct {
	SessionSecret string
	// UploadDir 非空时以 UploadURLPath 提供本地存储的静态文件
	UploadDir     string
	UploadURLPath string
	SecureCookie  bool
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger())
	r.MaxMultipartMemory = 16 << 20

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("postdesk_session", store))

	// 静态文件服务
	if dir := strings.TrimSpace(opts.UploadDir); dir != "" {
		urlPath := strings.TrimRight(strings.TrimSpace(opts.UploadURLPath), "/")
		if urlPath == "" {
			urlPath = "/static/uploads"
		}
		r.Static(urlPath, dir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// 后台管理接口
	admin := r.Group("/admin/api")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)

		// 需要认证的接口
		auth := admin.Group("")
		auth.Use(api.AuthRequired())
		{
			auth.GET("/posts", api.GetPosts)
			auth.GET("/posts/search", api.SearchPosts)
			auth.GET("/posts/:slug", api.GetPost)
			auth.POST("/posts", api.CreatePost)
			auth.PUT("/posts/:slug", api.UpdatePost)
			auth.DELETE("/posts/:slug", api.DeletePost)

			auth.POST("/editor/images", api.UploadEditorImage)

			auth.GET("/tags", api.GetTags)
			auth.POST("/tags", api.CreateTag)
			auth.DELETE("/tags/:id", api.DeleteTag)

			auth.GET("/categories", api.GetCategories)
			auth.POST("/categories", api.CreateCategory)
			auth.DELETE("/categories/:id", handler.AdminRequired(), api.DeleteCategory)

			maintenance := auth.Group("/maintenance")
			maintenance.Use(handler.AdminRequired())
			{
				maintenance.POST("/clean-temp-images", api.CleanTempImages)
			}
		}
	}

	return r
}
