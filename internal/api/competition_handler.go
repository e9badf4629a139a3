package api

import (
	"net/http"

	"GolfTour/internal/event"
	"GolfTour/internal/repository"
	"GolfTour/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CompetitionHandler 比赛管理接口（管理员侧）：建赛、状态流转、结果定格
type CompetitionHandler struct {
	competitionService *service.CompetitionService
	finalizeService    *service.FinalizeService
	logger             *logrus.Logger
}

// NewCompetitionHandler 创建 CompetitionHandler
func NewCompetitionHandler(db *gorm.DB, bus *event.Bus, logger *logrus.Logger) *CompetitionHandler {
	repo := repository.NewStandingsRepository(db)
	return &CompetitionHandler{
		competitionService: service.NewCompetitionService(db, logger),
		finalizeService:    service.NewFinalizeService(db, repo, bus, logger),
		logger:             logger,
	}
}

// CreateCompetition 建赛 POST /api/competitions
func (h *CompetitionHandler) CreateCompetition(c *gin.Context) {
	var req service.CreateCompetitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	comp, err := h.competitionService.CreateCompetition(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, comp)
}

// updateStatusRequest 改状态请求 body
type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 更新比赛状态 PUT /api/competitions/:uuid/status
func (h *CompetitionHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	comp, err := h.competitionService.UpdateStatus(c.Request.Context(), c.Param("uuid"), req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, comp)
}

// Finalize 定格比赛结果 POST /api/competitions/:uuid/finalize
func (h *CompetitionHandler) Finalize(c *gin.Context) {
	standings, err := h.finalizeService.Finalize(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, standings)
}

// Reopen 撤销定格 POST /api/competitions/:uuid/reopen
func (h *CompetitionHandler) Reopen(c *gin.Context) {
	if err := h.finalizeService.Reopen(c.Request.Context(), c.Param("uuid")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "定格已撤销，榜单恢复实时计算"})
}
