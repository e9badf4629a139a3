package api

import (
	"net/http"
	"strconv"

	"GolfTour/internal/event"
	"GolfTour/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ScoreHandler 记分卡接口：逐洞杆数写入、查询与锁定管理
type ScoreHandler struct {
	scorecardService *service.ScorecardService
	logger           *logrus.Logger
}

// NewScoreHandler 创建 ScoreHandler
func NewScoreHandler(db *gorm.DB, bus *event.Bus, logger *logrus.Logger) *ScoreHandler {
	svc := service.NewScorecardService(db, bus, logger)
	return &ScoreHandler{
		scorecardService: svc,
		logger:           logger,
	}
}

// updateScoreRequest 写杆数请求 body。shots 为非负整数，-1 表示捡球未完成
type updateScoreRequest struct {
	Shots *int `json:"shots" binding:"required"`
}

// UpdateScore 写某洞杆数 PUT /api/game-scores/:participant_uuid/hole/:hole
func (h *ScoreHandler) UpdateScore(c *gin.Context) {
	hole, err := strconv.Atoi(c.Param("hole"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hole: " + c.Param("hole")})
		return
	}
	var req updateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	score, err := h.scorecardService.UpdateScore(c.Request.Context(), c.Param("participant_uuid"), hole, *req.Shots)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// GetScorecard 读记分卡 GET /api/game-scores/:participant_uuid
func (h *ScoreHandler) GetScorecard(c *gin.Context) {
	participant, scores, err := h.scorecardService.GetScorecard(c.Request.Context(), c.Param("participant_uuid"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant_uuid": participant.ParticipantUUID,
		"is_locked":        participant.IsLocked,
		"is_dq":            participant.IsDQ,
		"handicap_index":   participant.HandicapIndex,
		"scores":           scores,
	})
}

// Lock 锁定记分卡（管理员） POST /api/participants/:uuid/lock
func (h *ScoreHandler) Lock(c *gin.Context) {
	if err := h.scorecardService.Lock(c.Request.Context(), c.Param("uuid")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "记分卡已锁定"})
}

// Unlock 解锁记分卡（管理员） POST /api/participants/:uuid/unlock
func (h *ScoreHandler) Unlock(c *gin.Context) {
	if err := h.scorecardService.Unlock(c.Request.Context(), c.Param("uuid")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "记分卡已解锁"})
}

// disqualifyRequest DQ 请求 body
type disqualifyRequest struct {
	IsDQ *bool `json:"is_dq" binding:"required"`
}

// Disqualify 设置/取消取消资格（管理员） POST /api/participants/:uuid/disqualify
func (h *ScoreHandler) Disqualify(c *gin.Context) {
	var req disqualifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := h.scorecardService.SetDisqualified(c.Request.Context(), c.Param("uuid"), *req.IsDQ); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "DQ 标记已更新"})
}
