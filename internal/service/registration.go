package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"GolfTour/internal/apperr"
	"GolfTour/internal/event"
	"GolfTour/internal/model"
	"GolfTour/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RegistrationService 报名与分组服务：报名状态机的唯一入口。
// 所有写操作都在事务内做"读-校验-条件写"，条件写影响行数为0视为脏读冲突。
type RegistrationService struct {
	db     *gorm.DB
	repo   repository.RegistrationRepository
	bus    *event.Bus
	logger *logrus.Logger
}

// NewRegistrationService 创建报名与分组服务
func NewRegistrationService(db *gorm.DB, bus *event.Bus, logger *logrus.Logger) *RegistrationService {
	return &RegistrationService{
		db:     db,
		repo:   repository.NewRegistrationRepository(db),
		bus:    bus,
		logger: logger,
	}
}

// GroupView 开球组视图。TeeTimeID 为0的空组哨兵表示"未进组"，外围读层不按404处理
type GroupView struct {
	TeeTimeID uint64                        `json:"tee_time_id"`
	CreatedBy uint64                        `json:"created_by,omitempty"`
	Members   []*repository.GroupMemberView `json:"members"`
}

// commitTransition 状态机守卫提交：先查迁移表，再按读到的旧状态条件更新。
// 并发下旧状态已被他人改写时影响行数为0，返回冲突而不是静默覆盖。
func (s *RegistrationService) commitTransition(tx *gorm.DB, reg *model.Registration, to model.RegistrationStatus, extra map[string]interface{}) error {
	if !model.CanTransition(reg.Status, to) {
		return apperr.Conflict("报名状态不允许从 %s 迁移到 %s", statusLabel(reg.Status), to)
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&model.Registration{}).
		Where("id = ? AND status = ?", reg.ID, reg.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("报名状态已被并发修改，请重试")
	}
	reg.Status = to
	return nil
}

// statusLabel 空状态在错误信息里展示为 unregistered
func statusLabel(s model.RegistrationStatus) string {
	if s == model.StatusNone {
		return "unregistered"
	}
	return string(s)
}

// loadCompetition 按UUID取比赛，未找到翻译为 NotFound；结果已定格的比赛拒绝报名类变更
func (s *RegistrationService) loadCompetition(ctx context.Context, competitionUUID string, mutating bool) (*model.Competition, error) {
	comp, err := s.repo.GetCompetitionByUUID(ctx, competitionUUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("比赛不存在: %s", competitionUUID)
	}
	if err != nil {
		return nil, err
	}
	if mutating && comp.IsResultsFinal {
		return nil, apperr.Conflict("比赛结果已定格，报名与分组不可再变更")
	}
	return comp, nil
}

// newAssignment 在事务内为球员创建记分卡（差点与发球台做报名时快照）
func newAssignment(tx *gorm.DB, comp *model.Competition, player *model.Player) (*model.Participant, error) {
	p := &model.Participant{
		ParticipantUUID: uuid.NewString(),
		CompetitionID:   comp.ID,
		PlayerID:        player.ID,
		TeeID:           comp.DefaultTeeID,
		HandicapIndex:   player.HandicapIndex,
	}
	if err := tx.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// assignmentUpdates 进组时写到报名行上的关联字段
func assignmentUpdates(teeTimeID uint64, participantID uint64, creatorID uint64) map[string]interface{} {
	return map[string]interface{}{
		"tee_time_id":      teeTimeID,
		"participant_id":   participantID,
		"group_created_by": creatorID,
	}
}

// clearAssignment 离组/退赛时清空报名行上的关联字段
func clearAssignment() map[string]interface{} {
	return map[string]interface{}{
		"tee_time_id":      nil,
		"participant_id":   nil,
		"group_created_by": nil,
	}
}

// Register 报名比赛。solo/create_group 会分配新开球组并直接进入 registered；
// looking_for_group 只落报名行等待拉组。重复报名返回冲突；退赛后可重新报名复活原记录。
func (s *RegistrationService) Register(ctx context.Context, competitionUUID string, playerID uint64, mode model.RegistrationMode) (*model.Registration, error) {
	if mode != model.ModeSolo && mode != model.ModeLookingForGroup && mode != model.ModeCreateGroup {
		return nil, apperr.Validation("非法报名方式: %s", mode)
	}
	comp, err := s.loadCompetition(ctx, competitionUUID, true)
	if err != nil {
		return nil, err
	}
	player, err := s.repo.GetPlayer(ctx, playerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("球员不存在: %d", playerID)
	}
	if err != nil {
		return nil, err
	}

	target := model.StatusRegistered
	if mode == model.ModeLookingForGroup {
		target = model.StatusLookingForGroup
	}

	var reg *model.Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Registration
		findErr := tx.Where("competition_id = ? AND player_id = ?", comp.ID, playerID).First(&existing).Error
		switch {
		case findErr == nil:
			if existing.Status != model.StatusWithdrawn {
				return apperr.Conflict("球员 %d 已报名该比赛", playerID)
			}
			// 退赛复活：走状态机迁移，重新分配关联
			extra := clearAssignment()
			if mode != model.ModeLookingForGroup {
				teeTime := &model.TeeTime{CompetitionID: comp.ID, CreatedBy: playerID}
				if err := tx.Create(teeTime).Error; err != nil {
					return err
				}
				participant, err := newAssignment(tx, comp, player)
				if err != nil {
					return err
				}
				extra = assignmentUpdates(teeTime.ID, participant.ID, playerID)
			}
			if err := s.commitTransition(tx, &existing, target, extra); err != nil {
				return err
			}
			reg = &existing
			return nil
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			newReg := &model.Registration{
				CompetitionID: comp.ID,
				PlayerID:      playerID,
				Status:        target,
			}
			if mode != model.ModeLookingForGroup {
				teeTime := &model.TeeTime{CompetitionID: comp.ID, CreatedBy: playerID}
				if err := tx.Create(teeTime).Error; err != nil {
					return err
				}
				participant, err := newAssignment(tx, comp, player)
				if err != nil {
					return err
				}
				newReg.TeeTimeID = &teeTime.ID
				newReg.ParticipantID = &participant.ID
				newReg.GroupCreatedBy = &playerID
			}
			if err := tx.Create(newReg).Error; err != nil {
				// 并发双写时唯一索引兜底，翻译为业务冲突
				if strings.Contains(err.Error(), "uk_competition_player") || strings.Contains(err.Error(), "UNIQUE") {
					return apperr.Conflict("球员 %d 已报名该比赛", playerID)
				}
				return err
			}
			reg = newReg
			return nil
		default:
			return findErr
		}
	})
	if err != nil {
		return nil, err
	}

	s.publishRegistrationChanged(ctx, comp.CompetitionUUID, reg)
	return reg, nil
}

// AddToGroup 组长把等待进组/尚未报名的球员拉入自己的开球组。
// 目标球员已在其他组、已开打或已完赛时返回冲突。
func (s *RegistrationService) AddToGroup(ctx context.Context, competitionUUID string, requesterID uint64, playerIDs []uint64) ([]*model.Registration, error) {
	if len(playerIDs) == 0 {
		return nil, apperr.Validation("player_ids 不能为空")
	}
	comp, err := s.loadCompetition(ctx, competitionUUID, true)
	if err != nil {
		return nil, err
	}

	var changed []*model.Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var requester model.Registration
		if err := tx.Where("competition_id = ? AND player_id = ?", comp.ID, requesterID).First(&requester).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Authorization("请求者未报名该比赛")
			}
			return err
		}
		if requester.TeeTimeID == nil || requester.GroupCreatedBy == nil || *requester.GroupCreatedBy != requesterID {
			return apperr.Authorization("只有开球组组长可以拉人进组")
		}
		teeTimeID := *requester.TeeTimeID

		for _, targetID := range playerIDs {
			if targetID == requesterID {
				return apperr.Validation("不能把自己拉入自己的开球组")
			}
			var player model.Player
			if err := tx.Where("id = ?", targetID).First(&player).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("球员不存在: %d", targetID)
				}
				return err
			}

			var targetReg model.Registration
			findErr := tx.Where("competition_id = ? AND player_id = ?", comp.ID, targetID).First(&targetReg).Error
			switch {
			case findErr == nil:
				if targetReg.Status != model.StatusLookingForGroup && targetReg.Status != model.StatusWithdrawn {
					return apperr.Conflict("球员 %d 已在其他组或状态不允许进组", targetID)
				}
				participant, err := newAssignment(tx, comp, &player)
				if err != nil {
					return err
				}
				if err := s.commitTransition(tx, &targetReg, model.StatusRegistered,
					assignmentUpdates(teeTimeID, participant.ID, requesterID)); err != nil {
					return err
				}
				targetReg.TeeTimeID = &teeTimeID
				changed = append(changed, &targetReg)
			case errors.Is(findErr, gorm.ErrRecordNotFound):
				// 尚未报名的 available 球员：直接建报名行并进组
				participant, err := newAssignment(tx, comp, &player)
				if err != nil {
					return err
				}
				newReg := &model.Registration{
					CompetitionID:  comp.ID,
					PlayerID:       targetID,
					Status:         model.StatusRegistered,
					TeeTimeID:      &teeTimeID,
					ParticipantID:  &participant.ID,
					GroupCreatedBy: &requesterID,
				}
				if err := tx.Create(newReg).Error; err != nil {
					if strings.Contains(err.Error(), "uk_competition_player") || strings.Contains(err.Error(), "UNIQUE") {
						return apperr.Conflict("球员 %d 已报名该比赛", targetID)
					}
					return err
				}
				changed = append(changed, newReg)
			default:
				return findErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, reg := range changed {
		s.publishRegistrationChanged(ctx, comp.CompetitionUUID, reg)
	}
	return changed, nil
}

// RemoveFromGroup 组长把成员移出开球组，成员回到 looking_for_group
func (s *RegistrationService) RemoveFromGroup(ctx context.Context, competitionUUID string, requesterID, targetID uint64) error {
	comp, err := s.loadCompetition(ctx, competitionUUID, true)
	if err != nil {
		return err
	}
	if requesterID == targetID {
		return apperr.Validation("移出自己请使用离组接口")
	}

	var changed *model.Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var requester model.Registration
		if err := tx.Where("competition_id = ? AND player_id = ?", comp.ID, requesterID).First(&requester).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Authorization("请求者未报名该比赛")
			}
			return err
		}
		if requester.TeeTimeID == nil || requester.GroupCreatedBy == nil || *requester.GroupCreatedBy != requesterID {
			return apperr.Authorization("只有开球组组长可以移出成员")
		}

		var target model.Registration
		if err := tx.Where("competition_id = ? AND player_id = ?", comp.ID, targetID).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("球员 %d 未报名该比赛", targetID)
			}
			return err
		}
		if target.TeeTimeID == nil || *target.TeeTimeID != *requester.TeeTimeID {
			return apperr.Conflict("球员 %d 不在该开球组", targetID)
		}
		if err := s.releaseFromGroup(tx, comp.ID, &target, model.StatusLookingForGroup); err != nil {
			return err
		}
		changed = &target
		return nil
	})
	if err != nil {
		return err
	}

	s.publishRegistrationChanged(ctx, comp.CompetitionUUID, changed)
	return nil
}

// LeaveGroup 球员主动离开开球组，回到 looking_for_group；组空则释放开球组
func (s *RegistrationService) LeaveGroup(ctx context.Context, competitionUUID string, playerID uint64) error {
	comp, err := s.loadCompetition(ctx, competitionUUID, true)
	if err != nil {
		return err
	}

	var changed *model.Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg model.Registration
		if err := tx.Where("competition_id = ? AND player_id = ?", comp.ID, playerID).First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("球员 %d 未报名该比赛", playerID)
			}
			return err
		}
		if reg.TeeTimeID == nil {
			return apperr.Conflict("球员 %d 当前不在任何开球组", playerID)
		}
		if err := s.releaseFromGroup(tx, comp.ID, &reg, model.StatusLookingForGroup); err != nil {
			return err
		}
		changed = &reg
		return nil
	})
	if err != nil {
		return err
	}

	s.publishRegistrationChanged(ctx, comp.CompetitionUUID, changed)
	return nil
}

// releaseFromGroup 事务内把报名行从开球组摘出：状态迁移 + 清关联 + 删记分卡 + 组空释放。
// 未开打的记分卡（及其可能的残留杆数）一并删除，开打后的离组走退赛路径。
func (s *RegistrationService) releaseFromGroup(tx *gorm.DB, competitionID uint64, reg *model.Registration, to model.RegistrationStatus) error {
	teeTimeID := reg.TeeTimeID
	participantID := reg.ParticipantID

	if err := s.commitTransition(tx, reg, to, clearAssignment()); err != nil {
		return err
	}
	reg.TeeTimeID, reg.ParticipantID, reg.GroupCreatedBy = nil, nil, nil
	if participantID != nil {
		if err := tx.Where("participant_id = ?", *participantID).Delete(&model.HoleScore{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", *participantID).Delete(&model.Participant{}).Error; err != nil {
			return err
		}
	}
	if teeTimeID != nil {
		return releaseTeeTimeIfEmpty(tx, *teeTimeID)
	}
	return nil
}

// releaseTeeTimeIfEmpty 最后一名成员离开后释放开球组
func releaseTeeTimeIfEmpty(tx *gorm.DB, teeTimeID uint64) error {
	var remaining int64
	if err := tx.Model(&model.Registration{}).Where("tee_time_id = ?", teeTimeID).Count(&remaining).Error; err != nil {
		return err
	}
	if remaining == 0 {
		return tx.Where("id = ?", teeTimeID).Delete(&model.TeeTime{}).Error
	}
	return nil
}

// StartPlaying registered → playing。已在 playing 时幂等成功；
// looking_for_group（未分组无记分卡）、finished、withdrawn 一律按迁移表拒绝。
func (s *RegistrationService) StartPlaying(ctx context.Context, competitionUUID string, playerID uint64) (*model.Registration, error) {
	comp, err := s.loadCompetition(ctx, competitionUUID, true)
	if err != nil {
		return nil, err
	}

	var reg *model.Registration
	var noop bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r model.Registration
		if err := tx.Where("competition_id = ? AND player_id = ?", comp.ID, playerID).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("球员 %d 未报名该比赛", playerID)
			}
			return err
		}
		if r.Status == model.StatusPlaying {
			reg, noop = &r, true
			return nil
		}
		if err := s.commitTransition(tx, &r, model.StatusPlaying, nil); err != nil {
			return err
		}
		reg = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !noop {
		s.publishRegistrationChanged(ctx, comp.CompetitionUUID, reg)
	}
	return reg, nil
}

// FinishRound playing → finished（终态）
func (s *RegistrationService) FinishRound(ctx context.Context, competitionUUID string, playerID uint64) (*model.Registration, error) {
	comp, err := s.loadCompetition(ctx, competitionUUID, true)
	if err != nil {
		return nil, err
	}

	var reg *model.Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r model.Registration
		if err := tx.Where("competition_id = ? AND player_id = ?", comp.ID, playerID).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("球员 %d 未报名该比赛", playerID)
			}
			return err
		}
		if err := s.commitTransition(tx, &r, model.StatusFinished, nil); err != nil {
			return err
		}
		reg = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishRegistrationChanged(ctx, comp.CompetitionUUID, reg)
	return reg, nil
}

// Withdraw 从任意非终态退赛并释放占用的组槽位。
// 已有杆数的记分卡按 DQ 保留（不参与排名，原始数据留存），空卡直接删除。
func (s *RegistrationService) Withdraw(ctx context.Context, competitionUUID string, playerID uint64) error {
	comp, err := s.loadCompetition(ctx, competitionUUID, true)
	if err != nil {
		return err
	}

	var changed *model.Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg model.Registration
		if err := tx.Where("competition_id = ? AND player_id = ?", comp.ID, playerID).First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("球员 %d 未报名该比赛", playerID)
			}
			return err
		}
		teeTimeID := reg.TeeTimeID
		participantID := reg.ParticipantID

		if err := s.commitTransition(tx, &reg, model.StatusWithdrawn, clearAssignment()); err != nil {
			return err
		}
		reg.TeeTimeID, reg.ParticipantID, reg.GroupCreatedBy = nil, nil, nil

		if participantID != nil {
			var scored int64
			if err := tx.Model(&model.HoleScore{}).Where("participant_id = ?", *participantID).Count(&scored).Error; err != nil {
				return err
			}
			if scored > 0 {
				// 中途退赛：记分卡按 DQ 保留原始数据
				if err := tx.Model(&model.Participant{}).Where("id = ?", *participantID).
					Update("is_dq", true).Error; err != nil {
					return err
				}
			} else {
				if err := tx.Where("id = ?", *participantID).Delete(&model.Participant{}).Error; err != nil {
					return err
				}
			}
		}
		if teeTimeID != nil {
			if err := releaseTeeTimeIfEmpty(tx, *teeTimeID); err != nil {
				return err
			}
		}
		changed = &reg
		return nil
	})
	if err != nil {
		return err
	}

	s.publishRegistrationChanged(ctx, comp.CompetitionUUID, changed)
	return nil
}

// ListAvailablePlayers 组队面板：全部球员及其在该比赛的状态与分组归属
func (s *RegistrationService) ListAvailablePlayers(ctx context.Context, competitionUUID string) ([]*repository.AvailablePlayerView, error) {
	comp, err := s.loadCompetition(ctx, competitionUUID, false)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAvailablePlayers(ctx, comp.ID)
}

// GetMyGroup 查询球员所在开球组；未报名或未进组时返回空组哨兵而不是404
func (s *RegistrationService) GetMyGroup(ctx context.Context, competitionUUID string, playerID uint64) (*GroupView, error) {
	comp, err := s.loadCompetition(ctx, competitionUUID, false)
	if err != nil {
		return nil, err
	}
	empty := &GroupView{TeeTimeID: 0, Members: []*repository.GroupMemberView{}}
	if playerID == 0 {
		return empty, nil
	}
	reg, err := s.repo.GetRegistration(ctx, comp.ID, playerID)
	if err != nil {
		return nil, err
	}
	if reg == nil || reg.TeeTimeID == nil {
		return empty, nil
	}
	members, err := s.repo.ListGroupMembers(ctx, *reg.TeeTimeID)
	if err != nil {
		return nil, err
	}
	view := &GroupView{TeeTimeID: *reg.TeeTimeID, Members: members}
	if reg.GroupCreatedBy != nil {
		view.CreatedBy = *reg.GroupCreatedBy
	}
	return view, nil
}

// MyTours 球员参加过的巡回赛；playerID 为0（未登录）时返回空集合
func (s *RegistrationService) MyTours(ctx context.Context, playerID uint64) ([]*model.Tour, error) {
	if playerID == 0 {
		return []*model.Tour{}, nil
	}
	return s.repo.ListToursForPlayer(ctx, playerID)
}

// MyActiveRounds 球员进行中的轮次；playerID 为0（未登录）时返回空集合
func (s *RegistrationService) MyActiveRounds(ctx context.Context, playerID uint64) ([]*repository.ActiveRoundView, error) {
	if playerID == 0 {
		return []*repository.ActiveRoundView{}, nil
	}
	return s.repo.ListActiveRounds(ctx, playerID)
}

// publishRegistrationChanged 事务提交后发布报名变更事件
func (s *RegistrationService) publishRegistrationChanged(ctx context.Context, competitionUUID string, reg *model.Registration) {
	if s.bus == nil || reg == nil {
		return
	}
	ev := event.RegistrationChanged{
		CompetitionUUID: competitionUUID,
		PlayerID:        reg.PlayerID,
		Status:          reg.Status,
	}
	if reg.TeeTimeID != nil {
		ev.TeeTimeID = *reg.TeeTimeID
	}
	s.bus.Publish(ctx, ev)
}
