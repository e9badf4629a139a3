package model

// RegistrationMode 报名方式枚举
type RegistrationMode string

const (
	ModeSolo            RegistrationMode = "solo"              // 单人报名（独占一个开球组）
	ModeLookingForGroup RegistrationMode = "looking_for_group" // 报名后等待他人拉组
	ModeCreateGroup     RegistrationMode = "create_group"      // 报名并创建开球组（可继续拉人）
)

// RegistrationStatus 报名状态枚举（状态机节点）
type RegistrationStatus string

const (
	StatusNone            RegistrationStatus = ""                  // 未报名（尚无报名记录）
	StatusLookingForGroup RegistrationStatus = "looking_for_group" // 已报名，等待进组
	StatusRegistered      RegistrationStatus = "registered"        // 已报名且已分配开球组
	StatusPlaying         RegistrationStatus = "playing"           // 比赛进行中
	StatusFinished        RegistrationStatus = "finished"          // 已完赛（终态）
	StatusWithdrawn       RegistrationStatus = "withdrawn"         // 已退赛（终态，可重新报名复活）
)

// registrationTransitions 报名状态机的唯一迁移表。
// 所有状态校验必须走 CanTransition，不在表内的迁移一律拒绝。
var registrationTransitions = map[RegistrationStatus]map[RegistrationStatus]bool{
	StatusNone: {
		StatusLookingForGroup: true,
		StatusRegistered:      true,
	},
	StatusLookingForGroup: {
		StatusRegistered: true, // 被组长拉入开球组
		StatusWithdrawn:  true,
	},
	StatusRegistered: {
		StatusLookingForGroup: true, // 离组/被移出后回到等待进组
		StatusPlaying:         true,
		StatusWithdrawn:       true,
	},
	StatusPlaying: {
		StatusFinished:  true,
		StatusWithdrawn: true,
	},
	// finished 为终态，无出边
	StatusFinished: {},
	// withdrawn 为终态，但允许通过重新报名复活
	StatusWithdrawn: {
		StatusLookingForGroup: true,
		StatusRegistered:      true,
	},
}

// CanTransition 判断报名状态能否从 from 迁移到 to
func CanTransition(from, to RegistrationStatus) bool {
	return registrationTransitions[from][to]
}

// IsTerminal 判断报名状态是否为终态（finished/withdrawn）
func (s RegistrationStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusWithdrawn
}

// ScoringMode 计分模式枚举
type ScoringMode string

const (
	ScoringGross ScoringMode = "gross" // 仅总杆
	ScoringNet   ScoringMode = "net"   // 仅净杆（差点折算）
	ScoringBoth  ScoringMode = "both"  // 总杆与净杆并行
)

// StartMode 开赛方式枚举
type StartMode string

const (
	StartScheduled StartMode = "scheduled" // 排定开球时间
	StartOpen      StartMode = "open"      // 自由组队随到随打
)

// CompetitionStatus 比赛状态枚举
type CompetitionStatus string

const (
	CompetitionUpcoming  CompetitionStatus = "upcoming"  // 未开始
	CompetitionActive    CompetitionStatus = "active"    // 进行中
	CompetitionCompleted CompetitionStatus = "completed" // 已结束（结果可定格）
)

// CompetitionKind 比赛归属判别：独立赛 / 巡回赛分站。
// 在边界处（建赛、查询）解析一次，下游只看 Kind，不再判断 TourID 指针。
type CompetitionKind string

const (
	KindStandalone CompetitionKind = "standalone"
	KindTour       CompetitionKind = "tour"
)

// ShotsPickedUp 某洞未打完（捡球）的哨兵值，计入洞数但不计入总杆
const ShotsPickedUp = -1

// SlopeBase USGA 坡度基准值，让杆数 = round(差点指数 × 坡度 / 113)
const SlopeBase = 113
