package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"

	"GolfTour/internal/apperr"
	"GolfTour/internal/model"
	"GolfTour/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StandingsService 榜单引擎：单场比赛的总杆/净杆排名与巡回赛积分聚合。
// 纯读服务，所有写入由 FinalizeService 负责。
type StandingsService struct {
	repo   repository.StandingsRepository
	logger *logrus.Logger
}

// NewStandingsService 创建榜单引擎
func NewStandingsService(repo repository.StandingsRepository, logger *logrus.Logger) *StandingsService {
	return &StandingsService{repo: repo, logger: logger}
}

// StandingsEntry 单场榜单中一名参赛者的成绩行
type StandingsEntry struct {
	Rank            int    `json:"rank"`
	PlayerID        uint64 `json:"player_id"`
	PlayerName      string `json:"player_name"`
	ParticipantUUID string `json:"participant_uuid"`
	Gross           int    `json:"gross"`
	Net             int    `json:"net"`
	HandicapStrokes int    `json:"handicap_strokes"`
	HolesPlayed     int    `json:"holes_played"`
	Incomplete      bool   `json:"incomplete"`
	Total           int    `json:"total"` // 当前 scoring_type 下参与排序的总数

	participantID uint64
	suffix        []int // suffix[h] = 第h洞到最后一洞的累计总杆（count-back用）
}

// CompetitionStandings 单场比赛榜单
type CompetitionStandings struct {
	CompetitionUUID string                `json:"competition_uuid"`
	Name            string                `json:"name"`
	Kind            model.CompetitionKind `json:"kind"`
	ScoringType     string                `json:"scoring_type"`
	Frozen          bool                  `json:"frozen"` // true 表示来自定格结果快照
	Entries         []*StandingsEntry     `json:"entries"`
}

// TourStandingsEntry 巡回赛积分榜一行
type TourStandingsEntry struct {
	Rank               int     `json:"rank"`
	PlayerID           uint64  `json:"player_id"`
	PlayerName         string  `json:"player_name"`
	TotalPoints        float64 `json:"total_points"`
	CompetitionsPlayed int     `json:"competitions_played"`
}

// TourStandings 巡回赛积分榜
type TourStandings struct {
	TourID  uint64                `json:"tour_id"`
	Name    string                `json:"name"`
	Entries []*TourStandingsEntry `json:"entries"`
}

// handicapStrokes 让杆数 = round(差点指数 × 坡度系数 / 113)
func handicapStrokes(handicapIndex float64, slopeRating int) int {
	return int(math.Round(handicapIndex * float64(slopeRating) / float64(model.SlopeBase)))
}

// resolveScoringType 解析请求的计分类型，空取比赛默认（net/both 默认净杆），
// 与比赛计分模式不兼容时报参数错误
func resolveScoringType(comp *model.Competition, scoringType string) (string, error) {
	if scoringType == "" {
		if comp.ScoringMode == model.ScoringGross {
			return string(model.ScoringGross), nil
		}
		return string(model.ScoringNet), nil
	}
	switch model.ScoringMode(scoringType) {
	case model.ScoringGross:
		if comp.ScoringMode == model.ScoringNet {
			return "", apperr.Validation("该比赛为净杆赛，不提供总杆榜")
		}
		return scoringType, nil
	case model.ScoringNet:
		if comp.ScoringMode == model.ScoringGross {
			return "", apperr.Validation("该比赛为总杆赛，不提供净杆榜")
		}
		return scoringType, nil
	default:
		return "", apperr.Validation("非法计分类型: %s", scoringType)
	}
}

// CompetitionStandings 计算单场比赛榜单。
// 结果已定格时以 FinalResult 快照为唯一事实来源，不再读台账。
func (s *StandingsService) CompetitionStandings(ctx context.Context, competitionUUID, scoringType string, categoryID uint64) (*CompetitionStandings, error) {
	comp, err := s.repo.GetCompetitionByUUID(ctx, competitionUUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("比赛不存在: %s", competitionUUID)
	}
	if err != nil {
		return nil, err
	}
	st, err := resolveScoringType(comp, scoringType)
	if err != nil {
		return nil, err
	}

	var members map[uint64]bool
	if categoryID > 0 {
		ids, err := s.repo.ListCategoryMemberIDs(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		members = make(map[uint64]bool, len(ids))
		for _, id := range ids {
			members[id] = true
		}
	}

	result := &CompetitionStandings{
		CompetitionUUID: comp.CompetitionUUID,
		Name:            comp.Name,
		Kind:            comp.Kind(),
		ScoringType:     st,
	}

	if comp.IsResultsFinal {
		entries, err := s.frozenEntries(ctx, comp, st, members)
		if err != nil {
			return nil, err
		}
		result.Frozen = true
		result.Entries = entries
		return result, nil
	}

	entries, _, err := s.liveEntries(ctx, comp, members)
	if err != nil {
		return nil, err
	}
	rankEntries(entries, st)
	result.Entries = entries
	return result, nil
}

// frozenEntries 从定格快照构造榜单；组别过滤后按原名次顺序重排名次
func (s *StandingsService) frozenEntries(ctx context.Context, comp *model.Competition, scoringType string, members map[uint64]bool) ([]*StandingsEntry, error) {
	rows, err := s.repo.ListFinalResults(ctx, comp.ID)
	if err != nil {
		return nil, err
	}
	playerIDs := make([]uint64, 0, len(rows))
	for _, r := range rows {
		playerIDs = append(playerIDs, r.PlayerID)
	}
	names, err := playerNames(ctx, s.repo, playerIDs)
	if err != nil {
		return nil, err
	}
	// 快照行只存记分卡内部ID，对外UUID从参赛表补齐（定格后报名冻结，行不会消失）
	participants, err := s.repo.ListParticipants(ctx, comp.ID)
	if err != nil {
		return nil, err
	}
	uuidByID := make(map[uint64]string, len(participants))
	for _, p := range participants {
		uuidByID[p.ID] = p.ParticipantUUID
	}

	entries := make([]*StandingsEntry, 0, len(rows))
	for _, r := range rows {
		if members != nil && !members[r.PlayerID] {
			continue
		}
		total := r.Gross
		if scoringType == string(model.ScoringNet) {
			total = r.Net
		}
		entries = append(entries, &StandingsEntry{
			Rank:            r.Rank,
			PlayerID:        r.PlayerID,
			PlayerName:      names[r.PlayerID],
			ParticipantUUID: uuidByID[r.ParticipantID],
			Gross:           r.Gross,
			Net:             r.Net,
			HandicapStrokes: r.Gross - r.Net,
			HolesPlayed:     r.HolesPlayed,
			Incomplete:      r.Incomplete,
			Total:           total,
			participantID:   r.ParticipantID,
		})
	}
	if members != nil {
		// 组别榜独立排名：按定格名次顺序重新编号，原并列保持并列
		newRank := make([]int, len(entries))
		for i, e := range entries {
			if i > 0 && e.Rank == entries[i-1].Rank {
				newRank[i] = newRank[i-1]
				continue
			}
			newRank[i] = i + 1
		}
		for i, e := range entries {
			e.Rank = newRank[i]
		}
	}
	return entries, nil
}

// liveEntries 从台账计算全部非DQ参赛者的成绩行（未排名），返回逐洞快照供定格用
func (s *StandingsService) liveEntries(ctx context.Context, comp *model.Competition, members map[uint64]bool) ([]*StandingsEntry, map[uint64]map[int]int, error) {
	return computeLiveEntries(ctx, s.repo, comp, members)
}

// computeLiveEntries 读仓储由调用方绑定：实时榜单绑定连接池，
// 定格在自己的事务内绑定 tx，保证快照读到的是守卫之后的台账
func computeLiveEntries(ctx context.Context, repo repository.StandingsRepository, comp *model.Competition, members map[uint64]bool) ([]*StandingsEntry, map[uint64]map[int]int, error) {
	course, err := repo.GetCourse(ctx, comp.CourseID)
	if err != nil {
		return nil, nil, err
	}
	participants, err := repo.ListParticipants(ctx, comp.ID)
	if err != nil {
		return nil, nil, err
	}

	kept := make([]*model.Participant, 0, len(participants))
	var participantIDs, playerIDs, teeIDs []uint64
	for _, p := range participants {
		if p.IsDQ {
			continue // DQ 不参与排名，原始数据保留在台账中
		}
		if members != nil && !members[p.PlayerID] {
			continue
		}
		kept = append(kept, p)
		participantIDs = append(participantIDs, p.ID)
		playerIDs = append(playerIDs, p.PlayerID)
		teeIDs = append(teeIDs, p.TeeID)
	}

	scores, err := repo.ListHoleScores(ctx, participantIDs)
	if err != nil {
		return nil, nil, err
	}
	names, err := playerNames(ctx, repo, playerIDs)
	if err != nil {
		return nil, nil, err
	}
	tees, err := repo.ListTees(ctx, teeIDs)
	if err != nil {
		return nil, nil, err
	}
	slopeByTee := make(map[uint64]int, len(tees))
	for _, t := range tees {
		slopeByTee[t.ID] = t.SlopeRating
	}

	holesByParticipant := make(map[uint64]map[int]int, len(kept))
	for _, sc := range scores {
		m := holesByParticipant[sc.ParticipantID]
		if m == nil {
			m = make(map[int]int)
			holesByParticipant[sc.ParticipantID] = m
		}
		m[sc.HoleNumber] = sc.Shots
	}

	entries := make([]*StandingsEntry, 0, len(kept))
	for _, p := range kept {
		holes := holesByParticipant[p.ID]
		e := &StandingsEntry{
			PlayerID:        p.PlayerID,
			PlayerName:      names[p.PlayerID],
			ParticipantUUID: p.ParticipantUUID,
			participantID:   p.ID,
		}
		for h := 1; h <= course.HoleCount; h++ {
			shots, ok := holes[h]
			if !ok || shots == model.ShotsPickedUp {
				continue // 未记或捡球：不计入总杆
			}
			e.Gross += shots
			e.HolesPlayed++
		}
		e.Incomplete = e.HolesPlayed < course.HoleCount
		if comp.ScoringMode != model.ScoringGross {
			e.HandicapStrokes = handicapStrokes(p.HandicapIndex, slopeByTee[p.TeeID])
		}
		e.Net = e.Gross - e.HandicapStrokes
		e.suffix = suffixTotals(holes, course.HoleCount)
		entries = append(entries, e)
	}
	return entries, holesByParticipant, nil
}

// suffixTotals count-back 用的后缀累计：suffix[h] = 第h洞至最后一洞的总杆。
// 未记或捡球的洞按0计。
func suffixTotals(holes map[int]int, holeCount int) []int {
	suffix := make([]int, holeCount+2)
	for h := holeCount; h >= 1; h-- {
		shots := holes[h]
		if shots == model.ShotsPickedUp {
			shots = 0
		}
		suffix[h] = suffix[h+1] + shots
	}
	return suffix
}

// compareCountback 从最后一洞向前比较累计总杆，先出现更小者胜；全程相同返回0
func compareCountback(a, b *StandingsEntry) int {
	n := len(a.suffix) - 2
	if m := len(b.suffix) - 2; m < n {
		n = m
	}
	for h := n; h >= 1; h-- {
		if a.suffix[h] != b.suffix[h] {
			if a.suffix[h] < b.suffix[h] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// rankEntries 按 Total 升序排名。同分先走 count-back 决定先后；
// count-back 仍无法区分的共享名次，下一个不同总杆的名次 = 1 + 严格更优人数。
func rankEntries(entries []*StandingsEntry, scoringType string) {
	for _, e := range entries {
		if scoringType == string(model.ScoringNet) {
			e.Total = e.Net
		} else {
			e.Total = e.Gross
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Total != b.Total {
			return a.Total < b.Total
		}
		if cb := compareCountback(a, b); cb != 0 {
			return cb < 0
		}
		return a.PlayerName < b.PlayerName // 完全并列时按姓名保证确定性
	})
	for i, e := range entries {
		if i > 0 && e.Total == entries[i-1].Total && compareCountback(e, entries[i-1]) == 0 {
			e.Rank = entries[i-1].Rank
			continue
		}
		e.Rank = i + 1
	}
}

// playerNames 批量取球员姓名
func playerNames(ctx context.Context, repo repository.StandingsRepository, playerIDs []uint64) (map[uint64]string, error) {
	players, err := repo.ListPlayers(ctx, playerIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[uint64]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}
	return names, nil
}

// parsePositions 解析积分模板的名次→积分映射
func parsePositions(tpl *model.PointTemplate) (map[string]float64, error) {
	positions := make(map[string]float64)
	if tpl == nil || len(tpl.Positions) == 0 {
		return positions, nil
	}
	if err := json.Unmarshal(tpl.Positions, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// pointsForRank 名次积分查找：先精确名次键，再回退 "default"，都没有则0分
func pointsForRank(rank int, positions map[string]float64) float64 {
	if v, ok := positions[strconv.Itoa(rank)]; ok {
		return v
	}
	if v, ok := positions["default"]; ok {
		return v
	}
	return 0
}

// TourStandings 巡回赛积分榜：对每名球员累加其所有已定格比赛的
// pointsForRank(定格名次, 模板) × 比赛积分倍率。
// 积分来自定格名次，与计分类型无关；scoringType 仅做参数合法性校验。
// 并列先比已定格参赛场次（少者优先），再按姓名保证确定性。
func (s *StandingsService) TourStandings(ctx context.Context, tourID uint64, scoringType string, categoryID uint64) (*TourStandings, error) {
	switch model.ScoringMode(scoringType) {
	case "", model.ScoringGross, model.ScoringNet:
	default:
		return nil, apperr.Validation("非法计分类型: %s", scoringType)
	}
	tour, err := s.repo.GetTour(ctx, tourID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("巡回赛不存在: %d", tourID)
	}
	if err != nil {
		return nil, err
	}

	positions := map[string]float64{}
	if tour.PointTemplateID != nil {
		tpl, err := s.repo.GetPointTemplate(ctx, *tour.PointTemplateID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if positions, err = parsePositions(tpl); err != nil {
			return nil, err
		}
	}

	var members map[uint64]bool
	if categoryID > 0 {
		ids, err := s.repo.ListCategoryMemberIDs(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		members = make(map[uint64]bool, len(ids))
		for _, id := range ids {
			members[id] = true
		}
	}

	comps, err := s.repo.ListFinalizedCompetitions(ctx, tourID)
	if err != nil {
		return nil, err
	}

	acc := make(map[uint64]*TourStandingsEntry)
	for _, comp := range comps {
		rows, err := s.repo.ListFinalResults(ctx, comp.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if members != nil && !members[r.PlayerID] {
				continue
			}
			e := acc[r.PlayerID]
			if e == nil {
				e = &TourStandingsEntry{PlayerID: r.PlayerID}
				acc[r.PlayerID] = e
			}
			e.TotalPoints += pointsForRank(r.Rank, positions) * comp.PointsMultiplier
			e.CompetitionsPlayed++
		}
	}

	playerIDs := make([]uint64, 0, len(acc))
	for id := range acc {
		playerIDs = append(playerIDs, id)
	}
	names, err := playerNames(ctx, s.repo, playerIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]*TourStandingsEntry, 0, len(acc))
	for _, e := range acc {
		e.PlayerName = names[e.PlayerID]
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints // 积分降序
		}
		if a.CompetitionsPlayed != b.CompetitionsPlayed {
			return a.CompetitionsPlayed < b.CompetitionsPlayed
		}
		return a.PlayerName < b.PlayerName
	})
	for i, e := range entries {
		if i > 0 && e.TotalPoints == entries[i-1].TotalPoints && e.CompetitionsPlayed == entries[i-1].CompetitionsPlayed {
			e.Rank = entries[i-1].Rank
			continue
		}
		e.Rank = i + 1
	}

	return &TourStandings{TourID: tour.ID, Name: tour.Name, Entries: entries}, nil
}
