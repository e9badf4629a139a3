package repository

import (
	"context"
	"errors"

	"GolfTour/internal/model"

	"gorm.io/gorm"
)

// AvailablePlayerView 组队面板的球员视图：报名状态 + 分组归属
type AvailablePlayerView struct {
	PlayerID       uint64                   `json:"player_id"`
	Name           string                   `json:"name"`
	Status         model.RegistrationStatus `json:"status"` // "available" 表示尚未报名
	TeeTimeID      uint64                   `json:"tee_time_id,omitempty"`
	GroupCreatedBy uint64                   `json:"group_created_by,omitempty"`
}

// StatusAvailable 尚未报名（或已退赛）球员在组队面板中的展示状态
const StatusAvailable model.RegistrationStatus = "available"

// GroupMemberView 开球组成员视图
type GroupMemberView struct {
	PlayerID        uint64                   `json:"player_id"`
	Name            string                   `json:"name"`
	Status          model.RegistrationStatus `json:"status"`
	ParticipantUUID string                   `json:"participant_uuid,omitempty"`
}

// ActiveRoundView 球员进行中轮次视图（"我的比赛"接口用）
type ActiveRoundView struct {
	CompetitionUUID string `json:"competition_uuid"`
	CompetitionName string `json:"competition_name"`
	TeeTimeID       uint64 `json:"tee_time_id,omitempty"`
	ParticipantUUID string `json:"participant_uuid,omitempty"`
}

// RegistrationRepository 报名与分组的读侧仓储
type RegistrationRepository interface {
	// GetCompetitionByUUID 通过 competition_uuid 获取比赛
	GetCompetitionByUUID(ctx context.Context, competitionUUID string) (*model.Competition, error)
	// GetPlayer 获取球员
	GetPlayer(ctx context.Context, playerID uint64) (*model.Player, error)
	// GetRegistration 获取某比赛某球员的报名记录，不存在返回 nil（不报错）
	GetRegistration(ctx context.Context, competitionID, playerID uint64) (*model.Registration, error)
	// ListGroupMembers 列出开球组成员（含球员姓名与记分卡UUID）
	ListGroupMembers(ctx context.Context, teeTimeID uint64) ([]*GroupMemberView, error)
	// CountGroupMembers 统计开球组成员数
	CountGroupMembers(ctx context.Context, teeTimeID uint64) (int64, error)
	// ListAvailablePlayers 组队面板：全部球员及其在该比赛的状态与分组
	ListAvailablePlayers(ctx context.Context, competitionID uint64) ([]*AvailablePlayerView, error)
	// ListToursForPlayer 球员参加过（报过名）的巡回赛
	ListToursForPlayer(ctx context.Context, playerID uint64) ([]*model.Tour, error)
	// ListActiveRounds 球员进行中的轮次（status=playing）
	ListActiveRounds(ctx context.Context, playerID uint64) ([]*ActiveRoundView, error)
}

type registrationRepository struct {
	db *gorm.DB
}

// NewRegistrationRepository 创建报名读侧仓储
func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (r *registrationRepository) GetCompetitionByUUID(ctx context.Context, competitionUUID string) (*model.Competition, error) {
	var c model.Competition
	if err := r.db.WithContext(ctx).Where("competition_uuid = ?", competitionUUID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *registrationRepository) GetPlayer(ctx context.Context, playerID uint64) (*model.Player, error) {
	var p model.Player
	if err := r.db.WithContext(ctx).Where("id = ?", playerID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *registrationRepository) GetRegistration(ctx context.Context, competitionID, playerID uint64) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.WithContext(ctx).
		Where("competition_id = ? AND player_id = ?", competitionID, playerID).
		First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *registrationRepository) ListGroupMembers(ctx context.Context, teeTimeID uint64) ([]*GroupMemberView, error) {
	var members []*GroupMemberView
	if err := r.db.WithContext(ctx).Model(&model.Registration{}).
		Select("registrations.player_id, players.name, registrations.status, COALESCE(participants.participant_uuid, '') AS participant_uuid").
		Joins("JOIN players ON players.id = registrations.player_id").
		Joins("LEFT JOIN participants ON participants.id = registrations.participant_id").
		Where("registrations.tee_time_id = ?", teeTimeID).
		Order("registrations.created_at ASC").
		Scan(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *registrationRepository) CountGroupMembers(ctx context.Context, teeTimeID uint64) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Registration{}).
		Where("tee_time_id = ?", teeTimeID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *registrationRepository) ListAvailablePlayers(ctx context.Context, competitionID uint64) ([]*AvailablePlayerView, error) {
	type row struct {
		PlayerID       uint64
		Name           string
		Status         model.RegistrationStatus
		TeeTimeID      *uint64
		GroupCreatedBy *uint64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&model.Player{}).
		Select("players.id AS player_id, players.name, registrations.status, registrations.tee_time_id, registrations.group_created_by").
		Joins("LEFT JOIN registrations ON registrations.player_id = players.id AND registrations.competition_id = ?", competitionID).
		Order("players.name ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	views := make([]*AvailablePlayerView, 0, len(rows))
	for _, x := range rows {
		v := &AvailablePlayerView{PlayerID: x.PlayerID, Name: x.Name, Status: x.Status}
		// 未报名或已退赛的球员在组队面板中视为 available，可被组长直接拉入
		if x.Status == model.StatusNone || x.Status == model.StatusWithdrawn {
			v.Status = StatusAvailable
		}
		if x.TeeTimeID != nil {
			v.TeeTimeID = *x.TeeTimeID
		}
		if x.GroupCreatedBy != nil {
			v.GroupCreatedBy = *x.GroupCreatedBy
		}
		views = append(views, v)
	}
	return views, nil
}

func (r *registrationRepository) ListToursForPlayer(ctx context.Context, playerID uint64) ([]*model.Tour, error) {
	var tours []*model.Tour
	if err := r.db.WithContext(ctx).Model(&model.Tour{}).
		Distinct("tours.*").
		Joins("JOIN competitions ON competitions.tour_id = tours.id").
		Joins("JOIN registrations ON registrations.competition_id = competitions.id").
		Where("registrations.player_id = ?", playerID).
		Order("tours.id ASC").
		Find(&tours).Error; err != nil {
		return nil, err
	}
	return tours, nil
}

func (r *registrationRepository) ListActiveRounds(ctx context.Context, playerID uint64) ([]*ActiveRoundView, error) {
	type row struct {
		CompetitionUUID string
		CompetitionName string
		TeeTimeID       *uint64
		ParticipantUUID string
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&model.Registration{}).
		Select("competitions.competition_uuid, competitions.name AS competition_name, registrations.tee_time_id, COALESCE(participants.participant_uuid, '') AS participant_uuid").
		Joins("JOIN competitions ON competitions.id = registrations.competition_id").
		Joins("LEFT JOIN participants ON participants.id = registrations.participant_id").
		Where("registrations.player_id = ? AND registrations.status = ?", playerID, model.StatusPlaying).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	views := make([]*ActiveRoundView, 0, len(rows))
	for _, x := range rows {
		v := &ActiveRoundView{
			CompetitionUUID: x.CompetitionUUID,
			CompetitionName: x.CompetitionName,
			ParticipantUUID: x.ParticipantUUID,
		}
		if x.TeeTimeID != nil {
			v.TeeTimeID = *x.TeeTimeID
		}
		views = append(views, v)
	}
	return views, nil
}
