package api

import (
	"net/http"

	"GolfTour/internal/event"
	"GolfTour/internal/model"
	"GolfTour/internal/repository"
	"GolfTour/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RegistrationHandler 报名与组队接口
type RegistrationHandler struct {
	registrationService *service.RegistrationService
	logger              *logrus.Logger
}

// NewRegistrationHandler 创建 RegistrationHandler
func NewRegistrationHandler(db *gorm.DB, bus *event.Bus, logger *logrus.Logger) *RegistrationHandler {
	svc := service.NewRegistrationService(db, bus, logger)
	return &RegistrationHandler{
		registrationService: svc,
		logger:              logger,
	}
}

// registerRequest 报名请求 body
type registerRequest struct {
	Mode string `json:"mode" binding:"required"` // solo / looking_for_group / create_group
}

// Register 报名接口 POST /api/competitions/:uuid/register
func (h *RegistrationHandler) Register(c *gin.Context) {
	pid, ok := requirePlayer(c)
	if !ok {
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	reg, err := h.registrationService.Register(c.Request.Context(), c.Param("uuid"), pid, model.RegistrationMode(req.Mode))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// Withdraw 退赛接口 DELETE /api/competitions/:uuid/register
func (h *RegistrationHandler) Withdraw(c *gin.Context) {
	pid, ok := requirePlayer(c)
	if !ok {
		return
	}
	if err := h.registrationService.Withdraw(c.Request.Context(), c.Param("uuid"), pid); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退赛"})
}

// addToGroupRequest 拉人进组请求 body
type addToGroupRequest struct {
	PlayerIDs []uint64 `json:"player_ids" binding:"required"`
}

// AddToGroup 组长拉人进组 POST /api/competitions/:uuid/group/add
func (h *RegistrationHandler) AddToGroup(c *gin.Context) {
	pid, ok := requirePlayer(c)
	if !ok {
		return
	}
	var req addToGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	regs, err := h.registrationService.AddToGroup(c.Request.Context(), c.Param("uuid"), pid, req.PlayerIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": regs})
}

// removeFromGroupRequest 移出组员请求 body
type removeFromGroupRequest struct {
	PlayerID uint64 `json:"player_id" binding:"required"`
}

// RemoveFromGroup 组长移出组员 POST /api/competitions/:uuid/group/remove
func (h *RegistrationHandler) RemoveFromGroup(c *gin.Context) {
	pid, ok := requirePlayer(c)
	if !ok {
		return
	}
	var req removeFromGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if err := h.registrationService.RemoveFromGroup(c.Request.Context(), c.Param("uuid"), pid, req.PlayerID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已移出开球组"})
}

// LeaveGroup 主动离组 POST /api/competitions/:uuid/group/leave
func (h *RegistrationHandler) LeaveGroup(c *gin.Context) {
	pid, ok := requirePlayer(c)
	if !ok {
		return
	}
	if err := h.registrationService.LeaveGroup(c.Request.Context(), c.Param("uuid"), pid); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已离开开球组"})
}

// StartPlaying 开始本轮 POST /api/competitions/:uuid/start-playing
func (h *RegistrationHandler) StartPlaying(c *gin.Context) {
	pid, ok := requirePlayer(c)
	if !ok {
		return
	}
	reg, err := h.registrationService.StartPlaying(c.Request.Context(), c.Param("uuid"), pid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// FinishRound 结束本轮 POST /api/competitions/:uuid/finish-round
func (h *RegistrationHandler) FinishRound(c *gin.Context) {
	pid, ok := requirePlayer(c)
	if !ok {
		return
	}
	reg, err := h.registrationService.FinishRound(c.Request.Context(), c.Param("uuid"), pid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// ListAvailablePlayers 组队面板 GET /api/competitions/:uuid/available-players
func (h *RegistrationHandler) ListAvailablePlayers(c *gin.Context) {
	views, err := h.registrationService.ListAvailablePlayers(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if views == nil {
		views = []*repository.AvailablePlayerView{}
	}
	c.JSON(http.StatusOK, gin.H{"players": views})
}

// GetMyGroup 我的开球组 GET /api/competitions/:uuid/group
// 未进组返回空组哨兵 {tee_time_id:0, members:[]} 而非404
func (h *RegistrationHandler) GetMyGroup(c *gin.Context) {
	pid, ok := requirePlayer(c)
	if !ok {
		return
	}
	group, err := h.registrationService.GetMyGroup(c.Request.Context(), c.Param("uuid"), pid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// MyTours 我参与的巡回赛 GET /api/me/tours
// 未登录返回空列表而非错误
func (h *RegistrationHandler) MyTours(c *gin.Context) {
	tours, err := h.registrationService.MyTours(c.Request.Context(), playerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if tours == nil {
		tours = []*model.Tour{}
	}
	c.JSON(http.StatusOK, gin.H{"tours": tours})
}

// MyActiveRounds 我进行中的轮次 GET /api/me/active-rounds
// 未登录返回空列表而非错误
func (h *RegistrationHandler) MyActiveRounds(c *gin.Context) {
	rounds, err := h.registrationService.MyActiveRounds(c.Request.Context(), playerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if rounds == nil {
		rounds = []*repository.ActiveRoundView{}
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}
