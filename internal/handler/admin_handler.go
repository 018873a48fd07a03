package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/auth"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	sessionUserIDKey = "user_id"
	identityKey      = "identity"
)

var errUnauthenticated = errors.New("unauthenticated")

type loginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Login 校验用户名密码，写入会话并签发 bearer token
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "用户名和密码不能为空")
		return
	}

	// 查找用户
	var user db.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Get().Error().Err(err).Msg("load user for login")
		}
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}
	if !user.IsActive {
		respondError(c, http.StatusForbidden, "账号已停用")
		return
	}

	// 设置会话
	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	token, err := a.tokens.Issue(auth.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "签发令牌失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"name":     user.Name,
			"role":     user.Role,
		},
	})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// AuthRequired 每个请求都重新解析身份，不在进程内缓存
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := a.resolveIdentity(c)
		if err != nil {
			message := "请先登录"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "登录已过期"
			}
			respondError(c, http.StatusUnauthorized, message)
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// AdminRequired 只允许管理员继续，需放在 AuthRequired 之后
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok || !identity.IsAdmin() {
			respondError(c, http.StatusForbidden, "需要管理员权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

// resolveIdentity 优先使用 bearer token，否则读取会话；角色始终以数据库为准
func (a *API) resolveIdentity(c *gin.Context) (auth.Identity, error) {
	var userID uint
	if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
		claimed, err := a.tokens.Verify(token)
		if err != nil {
			return auth.Identity{}, err
		}
		userID = claimed.UserID
	} else {
		raw := sessions.Default(c).Get(sessionUserIDKey)
		id, ok := raw.(uint)
		if !ok || id == 0 {
			return auth.Identity{}, errUnauthenticated
		}
		userID = id
	}

	var user db.User
	if err := a.db.Select("id", "role", "is_active").First(&user, userID).Error; err != nil {
		return auth.Identity{}, errUnauthenticated
	}
	if !user.IsActive {
		return auth.Identity{}, errUnauthenticated
	}
	return auth.Identity{UserID: user.ID, Role: user.Role}, nil
}

func currentIdentity(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}
