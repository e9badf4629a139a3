package api

import (
	"errors"
	"net/http"
	"strconv"

	"GolfTour/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError 业务错误到HTTP响应的唯一出口。
// 分类错误按 apperr.HTTPStatus 映射，未知错误记日志并返回500（不向外泄露细节）
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		c.JSON(apperr.HTTPStatus(ae.Kind), gin.H{
			"error": gin.H{"kind": string(ae.Kind), "message": ae.Message},
		})
		return
	}
	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("请求处理失败")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"kind": "internal", "message": "内部错误"},
	})
}

// playerID 从 X-Player-ID 头解析球员身份，未登录或非法返回0
func playerID(c *gin.Context) uint64 {
	raw := c.GetHeader("X-Player-ID")
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// requirePlayer 必须带球员身份的接口用，缺失时直接返回403
func requirePlayer(c *gin.Context) (uint64, bool) {
	id := playerID(c)
	if id == 0 {
		c.JSON(http.StatusForbidden, gin.H{
			"error": gin.H{"kind": string(apperr.KindAuthorization), "message": "缺少球员身份（X-Player-ID）"},
		})
		return 0, false
	}
	return id, true
}

// AdminAuth 管理员接口的鉴权中间件：X-Admin-Token 必须与配置一致
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("X-Admin-Token") != token {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"kind": string(apperr.KindAuthorization), "message": "管理员令牌无效"},
			})
			return
		}
		c.Next()
	}
}
