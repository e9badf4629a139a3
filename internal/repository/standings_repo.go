package repository

import (
	"context"

	"GolfTour/internal/model"

	"gorm.io/gorm"
)

// StandingsRepository 榜单计算的读侧仓储
type StandingsRepository interface {
	// GetCompetitionByUUID 通过 competition_uuid 获取比赛
	GetCompetitionByUUID(ctx context.Context, competitionUUID string) (*model.Competition, error)
	// GetCourse 获取球场（洞数校验与榜单展示用）
	GetCourse(ctx context.Context, courseID uint64) (*model.Course, error)
	// ListParticipants 列出比赛全部参赛记分卡
	ListParticipants(ctx context.Context, competitionID uint64) ([]*model.Participant, error)
	// ListHoleScores 批量拉取参赛者逐洞杆数
	ListHoleScores(ctx context.Context, participantIDs []uint64) ([]*model.HoleScore, error)
	// ListPlayers 批量获取球员（姓名展示与并列裁定用）
	ListPlayers(ctx context.Context, playerIDs []uint64) ([]*model.Player, error)
	// ListTees 批量获取发球台（坡度系数）
	ListTees(ctx context.Context, teeIDs []uint64) ([]*model.Tee, error)
	// ListCategoryMemberIDs 某组别的球员ID集合
	ListCategoryMemberIDs(ctx context.Context, categoryID uint64) ([]uint64, error)
	// GetTour 获取巡回赛
	GetTour(ctx context.Context, tourID uint64) (*model.Tour, error)
	// GetPointTemplate 获取积分模板
	GetPointTemplate(ctx context.Context, templateID uint64) (*model.PointTemplate, error)
	// ListFinalizedCompetitions 某巡回赛已定格的比赛
	ListFinalizedCompetitions(ctx context.Context, tourID uint64) ([]*model.Competition, error)
	// ListFinalResults 某比赛的定格结果（按名次升序）
	ListFinalResults(ctx context.Context, competitionID uint64) ([]*model.FinalResult, error)
}

type standingsRepository struct {
	db *gorm.DB
}

// NewStandingsRepository 创建榜单读侧仓储
func NewStandingsRepository(db *gorm.DB) StandingsRepository {
	return &standingsRepository{db: db}
}

func (r *standingsRepository) GetCompetitionByUUID(ctx context.Context, competitionUUID string) (*model.Competition, error) {
	var c model.Competition
	if err := r.db.WithContext(ctx).Where("competition_uuid = ?", competitionUUID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *standingsRepository) GetCourse(ctx context.Context, courseID uint64) (*model.Course, error) {
	var course model.Course
	if err := r.db.WithContext(ctx).Where("id = ?", courseID).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *standingsRepository) ListParticipants(ctx context.Context, competitionID uint64) ([]*model.Participant, error) {
	var list []*model.Participant
	if err := r.db.WithContext(ctx).
		Where("competition_id = ?", competitionID).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *standingsRepository) ListHoleScores(ctx context.Context, participantIDs []uint64) ([]*model.HoleScore, error) {
	if len(participantIDs) == 0 {
		return []*model.HoleScore{}, nil
	}
	var list []*model.HoleScore
	if err := r.db.WithContext(ctx).
		Where("participant_id IN ?", participantIDs).
		Order("participant_id ASC, hole_number ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *standingsRepository) ListPlayers(ctx context.Context, playerIDs []uint64) ([]*model.Player, error) {
	if len(playerIDs) == 0 {
		return []*model.Player{}, nil
	}
	var list []*model.Player
	if err := r.db.WithContext(ctx).
		Where("id IN ?", playerIDs).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *standingsRepository) ListTees(ctx context.Context, teeIDs []uint64) ([]*model.Tee, error) {
	if len(teeIDs) == 0 {
		return []*model.Tee{}, nil
	}
	var list []*model.Tee
	if err := r.db.WithContext(ctx).
		Where("id IN ?", teeIDs).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *standingsRepository) ListCategoryMemberIDs(ctx context.Context, categoryID uint64) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&model.CategoryMember{}).
		Where("category_id = ?", categoryID).
		Pluck("player_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *standingsRepository) GetTour(ctx context.Context, tourID uint64) (*model.Tour, error) {
	var t model.Tour
	if err := r.db.WithContext(ctx).Where("id = ?", tourID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *standingsRepository) GetPointTemplate(ctx context.Context, templateID uint64) (*model.PointTemplate, error) {
	var tpl model.PointTemplate
	if err := r.db.WithContext(ctx).Where("id = ?", templateID).First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *standingsRepository) ListFinalizedCompetitions(ctx context.Context, tourID uint64) ([]*model.Competition, error) {
	var list []*model.Competition
	if err := r.db.WithContext(ctx).
		Where("tour_id = ? AND is_results_final = ?", tourID, true).
		Order("results_finalized_at ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *standingsRepository) ListFinalResults(ctx context.Context, competitionID uint64) ([]*model.FinalResult, error) {
	var list []*model.FinalResult
	if err := r.db.WithContext(ctx).
		Where("competition_id = ?", competitionID).
		Order("rank ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
