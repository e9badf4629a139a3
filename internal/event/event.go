// Package event 定义核心对外发布的类型化领域事件。
// 外围读层（前端缓存、榜单页面）订阅这些事件做精确失效，
// 取代以前按缓存键前缀模糊匹配的失效方式。
package event

import (
	"context"
	"time"

	"GolfTour/internal/model"

	"github.com/sirupsen/logrus"
)

// Type 领域事件类型
type Type string

const (
	TypeRegistrationChanged  Type = "registration_changed"  // 报名/分组状态变更
	TypeScoreUpdated         Type = "score_updated"         // 某洞杆数更新
	TypeParticipantLocked    Type = "participant_locked"    // 记分卡锁定
	TypeParticipantUnlocked  Type = "participant_unlocked"  // 记分卡解锁
	TypeCompetitionFinalized Type = "competition_finalized" // 比赛结果定格
)

// Event 领域事件接口，实现方为各事件载荷结构体
type Event interface {
	EventType() Type
}

// RegistrationChanged 报名状态或分组归属发生变更
type RegistrationChanged struct {
	CompetitionUUID string                   `json:"competition_uuid"`
	PlayerID        uint64                   `json:"player_id"`
	Status          model.RegistrationStatus `json:"status"`
	TeeTimeID       uint64                   `json:"tee_time_id,omitempty"` // 0 表示未分组
}

func (RegistrationChanged) EventType() Type { return TypeRegistrationChanged }

// ScoreUpdated 某位参赛者某洞杆数写入
type ScoreUpdated struct {
	CompetitionUUID string `json:"competition_uuid"`
	ParticipantUUID string `json:"participant_uuid"`
	HoleNumber      int    `json:"hole_number"`
	Shots           int    `json:"shots"`
}

func (ScoreUpdated) EventType() Type { return TypeScoreUpdated }

// ParticipantLocked 记分卡锁定（仅实际发生锁定时发布，幂等重锁不发）
type ParticipantLocked struct {
	CompetitionUUID string `json:"competition_uuid"`
	ParticipantUUID string `json:"participant_uuid"`
}

func (ParticipantLocked) EventType() Type { return TypeParticipantLocked }

// ParticipantUnlocked 记分卡解锁
type ParticipantUnlocked struct {
	CompetitionUUID string `json:"competition_uuid"`
	ParticipantUUID string `json:"participant_uuid"`
}

func (ParticipantUnlocked) EventType() Type { return TypeParticipantUnlocked }

// CompetitionFinalized 比赛结果定格（或重新打开，Reopened=true）
type CompetitionFinalized struct {
	CompetitionUUID string `json:"competition_uuid"`
	TourID          uint64 `json:"tour_id,omitempty"` // 0 表示独立赛
	Reopened        bool   `json:"reopened,omitempty"`
}

func (CompetitionFinalized) EventType() Type { return TypeCompetitionFinalized }

// Subscriber 事件订阅方。通知失败只记日志，不回滚业务事务
type Subscriber interface {
	Notify(ctx context.Context, ev Event) error
}

// Bus 进程内事件总线：业务事务提交后同步推送给所有订阅方
type Bus struct {
	subscribers []Subscriber
	logger      *logrus.Logger
}

// NewBus 创建事件总线
func NewBus(logger *logrus.Logger, subscribers ...Subscriber) *Bus {
	return &Bus{subscribers: subscribers, logger: logger}
}

// Publish 同步通知所有订阅方，单个订阅方失败不影响其余
func (b *Bus) Publish(ctx context.Context, ev Event) {
	for _, sub := range b.subscribers {
		if err := sub.Notify(ctx, ev); err != nil {
			b.logger.WithError(err).WithField("event_type", ev.EventType()).Warn("领域事件通知失败")
		}
	}
}

// Envelope Webhook推送与审计日志共用的事件信封
type Envelope struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       Event     `json:"data"`
}

// NewEnvelope 包装事件信封，统一带上发生时间
func NewEnvelope(ev Event) Envelope {
	return Envelope{Type: ev.EventType(), OccurredAt: time.Now(), Data: ev}
}
