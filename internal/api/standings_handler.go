package api

import (
	"net/http"
	"strconv"

	"GolfTour/internal/repository"
	"GolfTour/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StandingsHandler 榜单查询接口
type StandingsHandler struct {
	standingsService *service.StandingsService
	logger           *logrus.Logger
}

// NewStandingsHandler 创建 StandingsHandler
func NewStandingsHandler(db *gorm.DB, logger *logrus.Logger) *StandingsHandler {
	repo := repository.NewStandingsRepository(db)
	svc := service.NewStandingsService(repo, logger)
	return &StandingsHandler{
		standingsService: svc,
		logger:           logger,
	}
}

// CompetitionStandings 单场榜单
// GET /api/competitions/:uuid/standings?scoring_type=gross|net&category_id=1
func (h *StandingsHandler) CompetitionStandings(c *gin.Context) {
	categoryID, _ := strconv.ParseUint(c.Query("category_id"), 10, 64)

	standings, err := h.standingsService.CompetitionStandings(
		c.Request.Context(),
		c.Param("uuid"),
		c.Query("scoring_type"),
		categoryID,
	)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, standings)
}

// TourStandings 巡回赛积分榜
// GET /api/tours/:id/standings?scoring_type=gross|net&category_id=1
func (h *StandingsHandler) TourStandings(c *gin.Context) {
	tourID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tour id: " + c.Param("id")})
		return
	}
	categoryID, _ := strconv.ParseUint(c.Query("category_id"), 10, 64)

	standings, err := h.standingsService.TourStandings(c.Request.Context(), tourID, c.Query("scoring_type"), categoryID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, standings)
}
