package model

import (
	"time"

	"gorm.io/datatypes"
)

type Tour struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Name            string    `gorm:"column:name;type:varchar(128);not null;comment:巡回赛名称"`
	PointTemplateID *uint64   `gorm:"column:point_template_id;type:bigint;comment:关联积分模板ID"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:更新时间"`
}

type Player struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Name          string    `gorm:"column:name;type:varchar(128);not null;comment:球员姓名"`
	HandicapIndex float64   `gorm:"column:handicap_index;type:numeric(4,1);default:0;comment:当前差点指数"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:更新时间"`
}

type Course struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Name      string    `gorm:"column:name;type:varchar(128);not null;comment:球场名称"`
	HoleCount int       `gorm:"column:hole_count;type:int;not null;default:18;comment:洞数"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:更新时间"`
}

type Tee struct {
	ID           uint64  `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	CourseID     uint64  `gorm:"column:course_id;type:bigint;not null;index;comment:关联球场ID"`
	Name         string  `gorm:"column:name;type:varchar(32);not null;comment:发球台名称（蓝T/白T等）"`
	SlopeRating  int     `gorm:"column:slope_rating;type:int;not null;default:113;comment:坡度难度系数（55-155）"`
	CourseRating float64 `gorm:"column:course_rating;type:numeric(4,1);comment:球场难度评定"`
	Par          int     `gorm:"column:par;type:int;not null;default:72;comment:标准杆"`
}

type Competition struct {
	ID                 uint64            `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	CompetitionUUID    string            `gorm:"column:competition_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	Name               string            `gorm:"column:name;type:varchar(128);not null;comment:比赛名称"`
	TourID             *uint64           `gorm:"column:tour_id;type:bigint;index;comment:所属巡回赛ID（独立赛为空）"`
	CourseID           uint64            `gorm:"column:course_id;type:bigint;not null;comment:关联球场ID"`
	DefaultTeeID       uint64            `gorm:"column:default_tee_id;type:bigint;not null;comment:默认发球台ID"`
	ScoringMode        ScoringMode       `gorm:"column:scoring_mode;type:varchar(8);not null;default:gross;comment:计分模式：gross/net/both"`
	PointsMultiplier   float64           `gorm:"column:points_multiplier;type:numeric(6,2);not null;default:1;comment:积分倍率"`
	StartMode          StartMode         `gorm:"column:start_mode;type:varchar(16);not null;default:open;comment:开赛方式：scheduled/open"`
	Status             CompetitionStatus `gorm:"column:status;type:varchar(16);not null;default:upcoming;comment:比赛状态"`
	IsResultsFinal     bool              `gorm:"column:is_results_final;type:boolean;not null;default:false;comment:结果是否已定格"`
	ResultsFinalizedAt *time.Time        `gorm:"column:results_finalized_at;type:timestamp;comment:结果定格时间"`
	CreatedAt          time.Time         `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:更新时间"`
}

// Kind 解析比赛归属判别（独立赛 / 巡回赛分站），只在边界调用一次
func (c *Competition) Kind() CompetitionKind {
	if c.TourID != nil {
		return KindTour
	}
	return KindStandalone
}

type Registration struct {
	ID             uint64             `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	CompetitionID  uint64             `gorm:"column:competition_id;type:bigint;not null;uniqueIndex:uk_competition_player;comment:关联比赛ID"`
	PlayerID       uint64             `gorm:"column:player_id;type:bigint;not null;uniqueIndex:uk_competition_player;comment:关联球员ID"`
	Status         RegistrationStatus `gorm:"column:status;type:varchar(32);not null;comment:报名状态"`
	GroupCreatedBy *uint64            `gorm:"column:group_created_by;type:bigint;comment:所在开球组的组长球员ID"`
	TeeTimeID      *uint64            `gorm:"column:tee_time_id;type:bigint;index;comment:关联开球组ID（最多一个）"`
	ParticipantID  *uint64            `gorm:"column:participant_id;type:bigint;comment:关联参赛记分卡ID"`
	CreatedAt      time.Time          `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:更新时间"`
}

type TeeTime struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	CompetitionID uint64     `gorm:"column:competition_id;type:bigint;not null;index;comment:关联比赛ID"`
	CreatedBy     uint64     `gorm:"column:created_by;type:bigint;not null;comment:建组球员ID"`
	TeeoffAt      *time.Time `gorm:"column:teeoff_at;type:timestamp;comment:预定开球时间（open 模式为空）"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
}

type Participant struct {
	ID              uint64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	ParticipantUUID string     `gorm:"column:participant_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	CompetitionID   uint64     `gorm:"column:competition_id;type:bigint;not null;index;comment:关联比赛ID"`
	PlayerID        uint64     `gorm:"column:player_id;type:bigint;not null;comment:关联球员ID"`
	TeeID           uint64     `gorm:"column:tee_id;type:bigint;not null;comment:本轮使用的发球台ID"`
	HandicapIndex   float64    `gorm:"column:handicap_index;type:numeric(4,1);not null;default:0;comment:报名时差点指数快照"`
	IsLocked        bool       `gorm:"column:is_locked;type:boolean;not null;default:false;comment:记分卡是否锁定"`
	LockedAt        *time.Time `gorm:"column:locked_at;type:timestamp;comment:锁定时间"`
	IsDQ            bool       `gorm:"column:is_dq;type:boolean;not null;default:false;comment:是否取消资格（不参与排名，原始数据保留）"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:更新时间"`
}

type HoleScore struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	ParticipantID uint64    `gorm:"column:participant_id;type:bigint;not null;uniqueIndex:uk_participant_hole;comment:关联参赛记分卡ID"`
	HoleNumber    int       `gorm:"column:hole_number;type:int;not null;uniqueIndex:uk_participant_hole;comment:洞号（1..N）"`
	Shots         int       `gorm:"column:shots;type:int;not null;comment:杆数（-1 表示捡球未完成）"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:更新时间"`
}

type Category struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	TourID uint64 `gorm:"column:tour_id;type:bigint;not null;index;comment:关联巡回赛ID"`
	Name   string `gorm:"column:name;type:varchar(64);not null;comment:组别名称（A组/女子组等）"`
}

type CategoryMember struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	CategoryID uint64 `gorm:"column:category_id;type:bigint;not null;uniqueIndex:uk_category_player;comment:关联组别ID"`
	PlayerID   uint64 `gorm:"column:player_id;type:bigint;not null;uniqueIndex:uk_category_player;comment:关联球员ID"`
}

// PointTemplate 积分模板：名次→积分映射，JSON 形如 {"1":100,"2":80,"default":50}
type PointTemplate struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Name      string         `gorm:"column:name;type:varchar(64);not null;comment:模板名称"`
	Positions datatypes.JSON `gorm:"column:positions;type:jsonb;not null;comment:名次积分映射"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
}

// FinalResult 比赛定格结果快照，写入后不再变更
type FinalResult struct {
	ID            uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	CompetitionID uint64         `gorm:"column:competition_id;type:bigint;not null;uniqueIndex:uk_competition_participant;comment:关联比赛ID"`
	ParticipantID uint64         `gorm:"column:participant_id;type:bigint;not null;uniqueIndex:uk_competition_participant;comment:关联参赛记分卡ID"`
	PlayerID      uint64         `gorm:"column:player_id;type:bigint;not null;index;comment:关联球员ID"`
	Rank          int            `gorm:"column:rank;type:int;not null;comment:定格名次"`
	Gross         int            `gorm:"column:gross;type:int;not null;comment:总杆"`
	Net           int            `gorm:"column:net;type:int;not null;comment:净杆"`
	HolesPlayed   int            `gorm:"column:holes_played;type:int;not null;comment:实际完成洞数"`
	Incomplete    bool           `gorm:"column:incomplete;type:boolean;not null;default:false;comment:记分卡是否不完整"`
	Points        float64        `gorm:"column:points;type:numeric(10,2);not null;default:0;comment:获得积分（含倍率）"`
	Holes         datatypes.JSON `gorm:"column:holes;type:jsonb;comment:逐洞杆数快照（审计用）"`
	CreatedAt     time.Time      `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;comment:创建时间"`
}

func (Tour) TableName() string           { return "tours" }
func (Player) TableName() string         { return "players" }
func (Course) TableName() string         { return "courses" }
func (Tee) TableName() string            { return "tees" }
func (Competition) TableName() string    { return "competitions" }
func (Registration) TableName() string   { return "registrations" }
func (TeeTime) TableName() string        { return "tee_times" }
func (Participant) TableName() string    { return "participants" }
func (HoleScore) TableName() string      { return "hole_scores" }
func (Category) TableName() string       { return "categories" }
func (CategoryMember) TableName() string { return "category_members" }
func (PointTemplate) TableName() string  { return "point_templates" }
func (FinalResult) TableName() string    { return "final_results" }
