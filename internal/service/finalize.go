package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"GolfTour/internal/apperr"
	"GolfTour/internal/event"
	"GolfTour/internal/model"
	"GolfTour/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FinalizeService 结果定格协调器：把实时榜单一次性快照为 FinalResult。
// 定格是单向操作，靠比赛行的条件更新保证并发下只成功一次。
type FinalizeService struct {
	db     *gorm.DB
	repo   repository.StandingsRepository
	bus    *event.Bus
	logger *logrus.Logger
}

// NewFinalizeService 创建定格服务
func NewFinalizeService(db *gorm.DB, repo repository.StandingsRepository, bus *event.Bus, logger *logrus.Logger) *FinalizeService {
	return &FinalizeService{db: db, repo: repo, bus: bus, logger: logger}
}

// Finalize 定格比赛结果（管理员操作）。
// 按比赛默认计分类型计算实时榜单并整体落库；未完赛的记分卡照常入榜并标记 incomplete。
// 已定格的比赛重复定格返回 AlreadyFinalized，已落库的快照不受影响。
func (s *FinalizeService) Finalize(ctx context.Context, competitionUUID string) (*CompetitionStandings, error) {
	comp, err := s.repo.GetCompetitionByUUID(ctx, competitionUUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("比赛不存在: %s", competitionUUID)
	}
	if err != nil {
		return nil, err
	}
	if comp.IsResultsFinal {
		return nil, apperr.AlreadyFinalized("比赛结果已定格: %s", competitionUUID)
	}

	st, err := resolveScoringType(comp, "")
	if err != nil {
		return nil, err
	}
	positions, err := s.tourPositions(ctx, comp)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var entries []*StandingsEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 定格守卫：只有从未定格的比赛能翻转标志位，并发重复定格影响行数为0。
		// 先翻标志位再算榜单：记分路径同样对比赛行做条件更新，
		// 定格期间的杆数写入会排在该行锁之后失败，快照不会漏掉任何已受理的杆数。
		res := tx.Model(&model.Competition{}).
			Where("id = ? AND is_results_final = ?", comp.ID, false).
			Updates(map[string]interface{}{
				"is_results_final":     true,
				"results_finalized_at": now,
				"status":               model.CompetitionCompleted,
				"updated_at":           now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.AlreadyFinalized("比赛结果已定格: %s", competitionUUID)
		}

		txRepo := repository.NewStandingsRepository(tx)
		liveEntries, holesByParticipant, err := computeLiveEntries(ctx, txRepo, comp, nil)
		if err != nil {
			return err
		}
		rankEntries(liveEntries, st)
		entries = liveEntries

		rows := make([]*model.FinalResult, 0, len(entries))
		for _, e := range entries {
			holesJSON, err := json.Marshal(holesByParticipant[e.participantID])
			if err != nil {
				return fmt.Errorf("序列化逐洞快照失败: %w", err)
			}
			rows = append(rows, &model.FinalResult{
				CompetitionID: comp.ID,
				ParticipantID: e.participantID,
				PlayerID:      e.PlayerID,
				Rank:          e.Rank,
				Gross:         e.Gross,
				Net:           e.Net,
				HolesPlayed:   e.HolesPlayed,
				Incomplete:    e.Incomplete,
				Points:        pointsForRank(e.Rank, positions) * comp.PointsMultiplier,
				Holes:         datatypes.JSON(holesJSON),
				CreatedAt:     now,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"competition_uuid": competitionUUID,
		"entries":          len(entries),
	}).Info("比赛结果已定格")
	if s.bus != nil {
		ev := event.CompetitionFinalized{CompetitionUUID: competitionUUID}
		if comp.TourID != nil {
			ev.TourID = *comp.TourID
		}
		s.bus.Publish(ctx, ev)
	}

	return &CompetitionStandings{
		CompetitionUUID: comp.CompetitionUUID,
		Name:            comp.Name,
		Kind:            comp.Kind(),
		ScoringType:     st,
		Frozen:          true,
		Entries:         entries,
	}, nil
}

// Reopen 撤销定格（管理员操作）：清除标志位并删除快照，榜单恢复实时计算。
// 未定格的比赛报 Conflict。
func (s *FinalizeService) Reopen(ctx context.Context, competitionUUID string) error {
	comp, err := s.repo.GetCompetitionByUUID(ctx, competitionUUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("比赛不存在: %s", competitionUUID)
	}
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Competition{}).
			Where("id = ? AND is_results_final = ?", comp.ID, true).
			Updates(map[string]interface{}{
				"is_results_final":     false,
				"results_finalized_at": nil,
				"status":               model.CompetitionActive,
				"updated_at":           time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("比赛结果尚未定格，无需撤销: %s", competitionUUID)
		}
		return tx.Where("competition_id = ?", comp.ID).Delete(&model.FinalResult{}).Error
	})
	if err != nil {
		return err
	}

	s.logger.WithField("competition_uuid", competitionUUID).Warn("比赛定格已撤销")
	if s.bus != nil {
		ev := event.CompetitionFinalized{CompetitionUUID: competitionUUID, Reopened: true}
		if comp.TourID != nil {
			ev.TourID = *comp.TourID
		}
		s.bus.Publish(ctx, ev)
	}
	return nil
}

// tourPositions 比赛所属巡回赛的积分模板；独立比赛或未配置模板时返回空映射（全员0分）
func (s *FinalizeService) tourPositions(ctx context.Context, comp *model.Competition) (map[string]float64, error) {
	if comp.TourID == nil {
		return map[string]float64{}, nil
	}
	tour, err := s.repo.GetTour(ctx, *comp.TourID)
	if err != nil {
		return nil, err
	}
	if tour.PointTemplateID == nil {
		return map[string]float64{}, nil
	}
	tpl, err := s.repo.GetPointTemplate(ctx, *tour.PointTemplateID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]float64{}, nil
	}
	if err != nil {
		return nil, err
	}
	return parsePositions(tpl)
}
