package service

import (
	"context"
	"testing"

	"GolfTour/internal/apperr"
	"GolfTour/internal/model"
	"GolfTour/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newFinalizeService(f *fixture) *FinalizeService {
	repo := repository.NewStandingsRepository(f.db)
	return NewFinalizeService(f.db, repo, nil, testLogger())
}

// seedScoredPair 两名完赛球员：冠军72杆、亚军90杆
func seedScoredPair(t *testing.T, f *fixture) (winner, runnerUp *model.Participant) {
	t.Helper()
	regSvc := NewRegistrationService(f.db, nil, testLogger())
	a := f.addPlayer(t, "冠军", 0)
	b := f.addPlayer(t, "亚军", 0)
	winner = f.registerSolo(t, regSvc, a.ID)
	runnerUp = f.registerSolo(t, regSvc, b.ID)
	for h := 1; h <= 18; h++ {
		if err := f.db.Create(&model.HoleScore{ParticipantID: winner.ID, HoleNumber: h, Shots: 4}).Error; err != nil {
			t.Fatalf("写杆数: %v", err)
		}
		if err := f.db.Create(&model.HoleScore{ParticipantID: runnerUp.ID, HoleNumber: h, Shots: 5}).Error; err != nil {
			t.Fatalf("写杆数: %v", err)
		}
	}
	return winner, runnerUp
}

func TestFinalizeSnapshotsResults(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := newFinalizeService(f)
	winner, _ := seedScoredPair(t, f)

	standings, err := svc.Finalize(context.Background(), f.comp.CompetitionUUID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !standings.Frozen {
		t.Fatal("定格返回的榜单应标记 frozen")
	}

	var comp model.Competition
	if err := f.db.Where("id = ?", f.comp.ID).First(&comp).Error; err != nil {
		t.Fatalf("查比赛: %v", err)
	}
	if !comp.IsResultsFinal || comp.ResultsFinalizedAt == nil {
		t.Fatal("定格后标志位与时间应写入")
	}
	if comp.Status != model.CompetitionCompleted {
		t.Fatalf("定格后状态 = %s, 期望 completed", comp.Status)
	}

	var rows []model.FinalResult
	if err := f.db.Where("competition_id = ?", f.comp.ID).Order("rank ASC").Find(&rows).Error; err != nil {
		t.Fatalf("查快照: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("快照行数 = %d, 期望 2", len(rows))
	}
	if rows[0].ParticipantID != winner.ID || rows[0].Rank != 1 || rows[0].Gross != 72 {
		t.Fatalf("冠军快照 = %+v", rows[0])
	}
	if len(rows[0].Holes) == 0 {
		t.Fatal("快照应带逐洞杆数")
	}
}

func TestFinalizeTwiceIsAlreadyFinalized(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := newFinalizeService(f)
	seedScoredPair(t, f)

	if _, err := svc.Finalize(context.Background(), f.comp.CompetitionUUID); err != nil {
		t.Fatalf("首次定格: %v", err)
	}
	_, err := svc.Finalize(context.Background(), f.comp.CompetitionUUID)
	if !apperr.IsKind(err, apperr.KindAlreadyFinalized) {
		t.Fatalf("重复定格应返回 already_finalized, 实际 %v", err)
	}

	// 已落库的快照不受重复定格影响
	var rows int64
	f.db.Model(&model.FinalResult{}).Where("competition_id = ?", f.comp.ID).Count(&rows)
	if rows != 2 {
		t.Fatalf("快照行数 = %d, 期望 2", rows)
	}
}

func TestStandingsFrozenAfterFinalize(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := newFinalizeService(f)
	standingsSvc := NewStandingsService(repository.NewStandingsRepository(f.db), testLogger())
	winner, _ := seedScoredPair(t, f)

	if _, err := svc.Finalize(context.Background(), f.comp.CompetitionUUID); err != nil {
		t.Fatalf("定格: %v", err)
	}

	// 定格后直接改台账，榜单仍来自快照
	if err := f.db.Model(&model.HoleScore{}).
		Where("participant_id = ? AND hole_number = ?", winner.ID, 1).
		Update("shots", 99).Error; err != nil {
		t.Fatalf("改台账: %v", err)
	}
	standings, err := standingsSvc.CompetitionStandings(context.Background(), f.comp.CompetitionUUID, "", 0)
	if err != nil {
		t.Fatalf("榜单: %v", err)
	}
	if !standings.Frozen {
		t.Fatal("定格后榜单应标记 frozen")
	}
	if standings.Entries[0].Gross != 72 {
		t.Fatalf("定格榜单总杆 = %d, 期望快照值 72", standings.Entries[0].Gross)
	}
	// 定格榜单与实时榜单同样对外暴露记分卡UUID
	if standings.Entries[0].ParticipantUUID != winner.ParticipantUUID {
		t.Fatalf("定格榜单记分卡UUID = %q, 期望 %q",
			standings.Entries[0].ParticipantUUID, winner.ParticipantUUID)
	}
}

func TestFinalizeSnapshotIncludesLastAcceptedScore(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := newFinalizeService(f)
	winner, _ := seedScoredPair(t, f)

	// 在定格事务翻转标志位之后、同一事务内再落一笔改分，
	// 模拟定格前最后一刻被受理的杆数写入；快照必须包含它
	const cb = "late_score_write"
	err := f.db.Callback().Update().After("gorm:update").Register(cb, func(db *gorm.DB) {
		if db.Statement.Table != "competitions" || db.Error != nil || db.RowsAffected == 0 {
			return
		}
		db.Session(&gorm.Session{NewDB: true}).Model(&model.HoleScore{}).
			Where("participant_id = ? AND hole_number = ?", winner.ID, 1).
			Update("shots", 10)
	})
	if err != nil {
		t.Fatalf("注册回调: %v", err)
	}
	defer f.db.Callback().Update().Remove(cb)

	if _, err := svc.Finalize(context.Background(), f.comp.CompetitionUUID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	var row model.FinalResult
	if err := f.db.Where("competition_id = ? AND participant_id = ?", f.comp.ID, winner.ID).First(&row).Error; err != nil {
		t.Fatalf("查快照: %v", err)
	}
	// 原72杆，第1洞4杆改为10杆 → 78
	if row.Gross != 78 {
		t.Fatalf("快照总杆 = %d, 期望 78（含定格事务内最后受理的改分）", row.Gross)
	}
}

func TestReopenClearsSnapshotAndAllowsRefinalize(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := newFinalizeService(f)
	seedScoredPair(t, f)

	if _, err := svc.Finalize(context.Background(), f.comp.CompetitionUUID); err != nil {
		t.Fatalf("定格: %v", err)
	}
	if err := svc.Reopen(context.Background(), f.comp.CompetitionUUID); err != nil {
		t.Fatalf("Reopen: %v", err)
	}

	var comp model.Competition
	f.db.Where("id = ?", f.comp.ID).First(&comp)
	if comp.IsResultsFinal {
		t.Fatal("撤销定格后标志位应清除")
	}
	var rows int64
	f.db.Model(&model.FinalResult{}).Where("competition_id = ?", f.comp.ID).Count(&rows)
	if rows != 0 {
		t.Fatalf("撤销定格后快照应删除, 剩余 %d 行", rows)
	}

	// 撤销后可再次定格
	if _, err := svc.Finalize(context.Background(), f.comp.CompetitionUUID); err != nil {
		t.Fatalf("再次定格: %v", err)
	}
}

func TestReopenNotFinalizedIsConflict(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := newFinalizeService(f)

	err := svc.Reopen(context.Background(), f.comp.CompetitionUUID)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("未定格撤销应返回 conflict, 实际 %v", err)
	}
}

func TestFinalizeWritesTourPoints(t *testing.T) {
	f := newFixture(t, model.ScoringGross)

	tpl := &model.PointTemplate{Name: "标准", Positions: datatypes.JSON(`{"1":100,"2":80,"default":50}`)}
	if err := f.db.Create(tpl).Error; err != nil {
		t.Fatalf("建模板: %v", err)
	}
	tour := &model.Tour{Name: "巡回赛", PointTemplateID: &tpl.ID}
	if err := f.db.Create(tour).Error; err != nil {
		t.Fatalf("建巡回赛: %v", err)
	}
	// 挂到巡回赛并设2倍积分
	if err := f.db.Model(&model.Competition{}).Where("id = ?", f.comp.ID).
		Updates(map[string]interface{}{"tour_id": tour.ID, "points_multiplier": 2}).Error; err != nil {
		t.Fatalf("改比赛: %v", err)
	}
	f.comp.TourID = &tour.ID
	f.comp.PointsMultiplier = 2

	svc := newFinalizeService(f)
	winner, _ := seedScoredPair(t, f)
	if _, err := svc.Finalize(context.Background(), f.comp.CompetitionUUID); err != nil {
		t.Fatalf("定格: %v", err)
	}

	var row model.FinalResult
	if err := f.db.Where("competition_id = ? AND participant_id = ?", f.comp.ID, winner.ID).First(&row).Error; err != nil {
		t.Fatalf("查快照: %v", err)
	}
	// 第1名100分 × 2倍 = 200
	if row.Points != 200 {
		t.Fatalf("冠军积分 = %v, 期望 200", row.Points)
	}
}
