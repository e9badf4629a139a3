package service

import (
	"context"
	"errors"
	"time"

	"GolfTour/internal/apperr"
	"GolfTour/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CompetitionService 比赛管理（管理员侧）：建赛与状态流转
type CompetitionService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewCompetitionService 创建比赛管理服务
func NewCompetitionService(db *gorm.DB, logger *logrus.Logger) *CompetitionService {
	return &CompetitionService{db: db, logger: logger}
}

// CreateCompetitionInput 建赛参数
type CreateCompetitionInput struct {
	Name             string  `json:"name" binding:"required"`
	TourID           *uint64 `json:"tour_id"` // 为空表示独立赛
	CourseID         uint64  `json:"course_id" binding:"required"`
	DefaultTeeID     uint64  `json:"default_tee_id" binding:"required"`
	ScoringMode      string  `json:"scoring_mode"`
	PointsMultiplier float64 `json:"points_multiplier"`
	StartMode        string  `json:"start_mode"`
}

// CreateCompetition 创建比赛。tour_id 为空即独立赛，归属判别在此解析一次。
func (s *CompetitionService) CreateCompetition(ctx context.Context, in *CreateCompetitionInput) (*model.Competition, error) {
	scoring := model.ScoringMode(in.ScoringMode)
	if in.ScoringMode == "" {
		scoring = model.ScoringGross
	}
	switch scoring {
	case model.ScoringGross, model.ScoringNet, model.ScoringBoth:
	default:
		return nil, apperr.Validation("非法计分模式: %s", in.ScoringMode)
	}
	start := model.StartMode(in.StartMode)
	if in.StartMode == "" {
		start = model.StartOpen
	}
	switch start {
	case model.StartScheduled, model.StartOpen:
	default:
		return nil, apperr.Validation("非法开赛方式: %s", in.StartMode)
	}
	if in.PointsMultiplier < 0 {
		return nil, apperr.Validation("积分倍率不能为负: %f", in.PointsMultiplier)
	}
	multiplier := in.PointsMultiplier
	if multiplier == 0 {
		multiplier = 1
	}

	db := s.db.WithContext(ctx)
	if in.TourID != nil {
		var tour model.Tour
		if err := db.Where("id = ?", *in.TourID).First(&tour).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound("巡回赛不存在: %d", *in.TourID)
			}
			return nil, err
		}
	}
	var tee model.Tee
	if err := db.Where("id = ?", in.DefaultTeeID).First(&tee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("发球台不存在: %d", in.DefaultTeeID)
		}
		return nil, err
	}
	if tee.CourseID != in.CourseID {
		return nil, apperr.Validation("发球台 %d 不属于球场 %d", in.DefaultTeeID, in.CourseID)
	}

	comp := &model.Competition{
		CompetitionUUID:  uuid.NewString(),
		Name:             in.Name,
		TourID:           in.TourID,
		CourseID:         in.CourseID,
		DefaultTeeID:     in.DefaultTeeID,
		ScoringMode:      scoring,
		PointsMultiplier: multiplier,
		StartMode:        start,
		Status:           model.CompetitionUpcoming,
	}
	if err := db.Create(comp).Error; err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"competition_uuid": comp.CompetitionUUID,
		"kind":             comp.Kind(),
	}).Info("比赛已创建")
	return comp, nil
}

// UpdateStatus 更新比赛状态。结果已定格的比赛不允许再改状态。
func (s *CompetitionService) UpdateStatus(ctx context.Context, competitionUUID string, status string) (*model.Competition, error) {
	next := model.CompetitionStatus(status)
	switch next {
	case model.CompetitionUpcoming, model.CompetitionActive, model.CompetitionCompleted:
	default:
		return nil, apperr.Validation("非法比赛状态: %s", status)
	}

	var comp model.Competition
	err := s.db.WithContext(ctx).Where("competition_uuid = ?", competitionUUID).First(&comp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("比赛不存在: %s", competitionUUID)
	}
	if err != nil {
		return nil, err
	}
	if comp.IsResultsFinal {
		return nil, apperr.AlreadyFinalized("比赛结果已定格，状态不可修改")
	}

	res := s.db.WithContext(ctx).Model(&model.Competition{}).
		Where("id = ? AND is_results_final = ?", comp.ID, false).
		Updates(map[string]interface{}{
			"status":     next,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.AlreadyFinalized("比赛结果已定格，状态不可修改")
	}
	comp.Status = next
	return &comp, nil
}
