package service

import (
	"context"
	"errors"
	"time"

	"GolfTour/internal/apperr"
	"GolfTour/internal/event"
	"GolfTour/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScorecardService 记分卡台账：逐洞杆数写入与锁定管理。
// 锁定检查与杆数写入在同一事务内，对同一张卡的写入通过参赛行的条件更新串行化。
type ScorecardService struct {
	db     *gorm.DB
	bus    *event.Bus
	logger *logrus.Logger
}

// NewScorecardService 创建记分卡服务
func NewScorecardService(db *gorm.DB, bus *event.Bus, logger *logrus.Logger) *ScorecardService {
	return &ScorecardService{db: db, bus: bus, logger: logger}
}

// loadParticipant 按UUID取参赛记分卡，未找到翻译为 NotFound
func (s *ScorecardService) loadParticipant(ctx context.Context, participantUUID string) (*model.Participant, error) {
	var p model.Participant
	err := s.db.WithContext(ctx).Where("participant_uuid = ?", participantUUID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("记分卡不存在: %s", participantUUID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// competitionUUIDOf 参赛记分卡所属比赛的UUID（事件载荷用）
func (s *ScorecardService) competitionUUIDOf(ctx context.Context, competitionID uint64) string {
	var comp model.Competition
	if err := s.db.WithContext(ctx).Select("competition_uuid").
		Where("id = ?", competitionID).First(&comp).Error; err != nil {
		s.logger.WithError(err).WithField("competition_id", competitionID).Warn("查询比赛UUID失败")
		return ""
	}
	return comp.CompetitionUUID
}

// UpdateScore 写入某洞杆数。shots 为非负整数，或 ShotsPickedUp 表示捡球未完成。
// 记分卡锁定时返回 Locked；锁定检查与写入在同一事务内，不会写进并发锁定中的卡。
func (s *ScorecardService) UpdateScore(ctx context.Context, participantUUID string, hole, shots int) (*model.HoleScore, error) {
	if shots < 0 && shots != model.ShotsPickedUp {
		return nil, apperr.Validation("非法杆数: %d（允许非负整数或 %d 表示捡球）", shots, model.ShotsPickedUp)
	}

	p, err := s.loadParticipant(ctx, participantUUID)
	if err != nil {
		return nil, err
	}

	var score *model.HoleScore
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comp model.Competition
		if err := tx.Where("id = ?", p.CompetitionID).First(&comp).Error; err != nil {
			return err
		}
		// 定格守卫：对比赛行做条件更新，与定格事务在同一行上串行化。
		// 定格进行中的写入会等它提交后在这里失败，不会漏进快照之外。
		res := tx.Model(&model.Competition{}).
			Where("id = ? AND is_results_final = ?", p.CompetitionID, false).
			Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.AlreadyFinalized("比赛结果已定格，杆数不可再修改")
		}
		var course model.Course
		if err := tx.Where("id = ?", comp.CourseID).First(&course).Error; err != nil {
			return err
		}
		if hole < 1 || hole > course.HoleCount {
			return apperr.Validation("洞号越界: %d（球场共 %d 洞）", hole, course.HoleCount)
		}

		if err := guardScorable(tx, p.ID); err != nil {
			return err
		}

		score = &model.HoleScore{
			ParticipantID: p.ID,
			HoleNumber:    hole,
			Shots:         shots,
			UpdatedAt:     time.Now(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "participant_id"}, {Name: "hole_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"shots", "updated_at"}),
		}).Create(score).Error
	})
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, event.ScoreUpdated{
			CompetitionUUID: s.competitionUUIDOf(ctx, p.CompetitionID),
			ParticipantUUID: p.ParticipantUUID,
			HoleNumber:      hole,
			Shots:           shots,
		})
	}
	return score, nil
}

// guardScorable 锁定守卫：对参赛行做条件更新，锁定中（或刚被锁定）的卡影响行数为0。
// 行已不存在（并发退组删除）报 NotFound，区别于锁定
func guardScorable(tx *gorm.DB, participantID uint64) error {
	res := tx.Model(&model.Participant{}).
		Where("id = ? AND is_locked = ?", participantID, false).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&model.Participant{}).Where("id = ?", participantID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.NotFound("记分卡不存在或已删除")
	}
	return apperr.Locked("记分卡已锁定，杆数不可修改")
}

// Lock 锁定记分卡（管理员操作）。重复锁定幂等成功，不报错也不重复发事件
func (s *ScorecardService) Lock(ctx context.Context, participantUUID string) error {
	p, err := s.loadParticipant(ctx, participantUUID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&model.Participant{}).
		Where("id = ? AND is_locked = ?", p.ID, false).
		Updates(map[string]interface{}{
			"is_locked":  true,
			"locked_at":  time.Now(),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 已锁定：幂等成功
		return nil
	}

	if s.bus != nil {
		s.bus.Publish(ctx, event.ParticipantLocked{
			CompetitionUUID: s.competitionUUIDOf(ctx, p.CompetitionID),
			ParticipantUUID: p.ParticipantUUID,
		})
	}
	return nil
}

// Unlock 解锁记分卡（管理员操作），恢复可编辑。未锁定时幂等成功
func (s *ScorecardService) Unlock(ctx context.Context, participantUUID string) error {
	p, err := s.loadParticipant(ctx, participantUUID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&model.Participant{}).
		Where("id = ? AND is_locked = ?", p.ID, true).
		Updates(map[string]interface{}{
			"is_locked":  false,
			"locked_at":  nil,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	if s.bus != nil {
		s.bus.Publish(ctx, event.ParticipantUnlocked{
			CompetitionUUID: s.competitionUUIDOf(ctx, p.CompetitionID),
			ParticipantUUID: p.ParticipantUUID,
		})
	}
	return nil
}

// SetDisqualified 设置/取消 DQ 标记（管理员操作）。
// DQ 的参赛者不参与排名，逐洞原始数据保留。
func (s *ScorecardService) SetDisqualified(ctx context.Context, participantUUID string, flag bool) error {
	p, err := s.loadParticipant(ctx, participantUUID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.Participant{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"is_dq":      flag,
			"updated_at": time.Now(),
		}).Error
}

// GetScorecard 读取记分卡（逐洞杆数按洞号升序）
func (s *ScorecardService) GetScorecard(ctx context.Context, participantUUID string) (*model.Participant, []*model.HoleScore, error) {
	p, err := s.loadParticipant(ctx, participantUUID)
	if err != nil {
		return nil, nil, err
	}
	var scores []*model.HoleScore
	if err := s.db.WithContext(ctx).
		Where("participant_id = ?", p.ID).
		Order("hole_number ASC").
		Find(&scores).Error; err != nil {
		return nil, nil, err
	}
	return p, scores, nil
}
