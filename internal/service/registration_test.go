package service

import (
	"context"
	"testing"

	"GolfTour/internal/apperr"
	"GolfTour/internal/model"
)

func TestRegisterSoloAllocatesGroupAndScorecard(t *testing.T) {
	f := newFixture(t, model.ScoringBoth)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 10.4)

	reg, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeSolo)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Status != model.StatusRegistered {
		t.Fatalf("状态 = %s, 期望 registered", reg.Status)
	}
	if reg.TeeTimeID == nil || reg.ParticipantID == nil || reg.GroupCreatedBy == nil {
		t.Fatal("solo 报名应分配开球组与记分卡")
	}

	var participant model.Participant
	if err := f.db.Where("id = ?", *reg.ParticipantID).First(&participant).Error; err != nil {
		t.Fatalf("查记分卡: %v", err)
	}
	if participant.HandicapIndex != 10.4 {
		t.Fatalf("差点快照 = %v, 期望 10.4", participant.HandicapIndex)
	}
	if participant.TeeID != f.tee.ID {
		t.Fatalf("发球台 = %d, 期望 %d", participant.TeeID, f.tee.ID)
	}
}

func TestRegisterLookingForGroupHasNoAssignment(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "李娜", 8.0)

	reg, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeLookingForGroup)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Status != model.StatusLookingForGroup {
		t.Fatalf("状态 = %s, 期望 looking_for_group", reg.Status)
	}
	if reg.TeeTimeID != nil || reg.ParticipantID != nil {
		t.Fatal("looking_for_group 不应分配开球组或记分卡")
	}
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeSolo); err != nil {
		t.Fatalf("首次报名: %v", err)
	}
	_, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeSolo)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("重复报名应返回 conflict, 实际 %v", err)
	}
}

func TestRegisterInvalidMode(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	_, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, "team_scramble")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("非法 mode 应返回 validation, 实际 %v", err)
	}
}

func TestAddToGroupPullsWaitingPlayer(t *testing.T) {
	f := newFixture(t, model.ScoringBoth)
	svc := NewRegistrationService(f.db, nil, testLogger())
	creator := f.addPlayer(t, "组长", 6.0)
	waiting := f.addPlayer(t, "等待者", 12.3)

	creatorReg, err := svc.Register(context.Background(), f.comp.CompetitionUUID, creator.ID, model.ModeCreateGroup)
	if err != nil {
		t.Fatalf("组长报名: %v", err)
	}
	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, waiting.ID, model.ModeLookingForGroup); err != nil {
		t.Fatalf("等待者报名: %v", err)
	}

	added, err := svc.AddToGroup(context.Background(), f.comp.CompetitionUUID, creator.ID, []uint64{waiting.ID})
	if err != nil {
		t.Fatalf("AddToGroup: %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("进组人数 = %d, 期望 1", len(added))
	}
	if added[0].Status != model.StatusRegistered {
		t.Fatalf("状态 = %s, 期望 registered", added[0].Status)
	}
	if added[0].TeeTimeID == nil || *added[0].TeeTimeID != *creatorReg.TeeTimeID {
		t.Fatal("应进入组长的开球组")
	}

	// 等待者进组后获得带差点快照的记分卡
	var reg model.Registration
	if err := f.db.Where("competition_id = ? AND player_id = ?", f.comp.ID, waiting.ID).First(&reg).Error; err != nil {
		t.Fatalf("查报名行: %v", err)
	}
	var participant model.Participant
	if err := f.db.Where("id = ?", *reg.ParticipantID).First(&participant).Error; err != nil {
		t.Fatalf("查记分卡: %v", err)
	}
	if participant.HandicapIndex != 12.3 {
		t.Fatalf("差点快照 = %v, 期望 12.3", participant.HandicapIndex)
	}
}

func TestAddToGroupUnregisteredPlayerDirectly(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	creator := f.addPlayer(t, "组长", 6.0)
	fresh := f.addPlayer(t, "未报名", 20.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, creator.ID, model.ModeCreateGroup); err != nil {
		t.Fatalf("组长报名: %v", err)
	}
	added, err := svc.AddToGroup(context.Background(), f.comp.CompetitionUUID, creator.ID, []uint64{fresh.ID})
	if err != nil {
		t.Fatalf("AddToGroup: %v", err)
	}
	if added[0].Status != model.StatusRegistered {
		t.Fatalf("未报名球员被拉入后状态 = %s, 期望 registered", added[0].Status)
	}
}

func TestAddToGroupOnlyCreator(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	creator := f.addPlayer(t, "组长", 6.0)
	member := f.addPlayer(t, "组员", 9.0)
	outsider := f.addPlayer(t, "外人", 15.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, creator.ID, model.ModeCreateGroup); err != nil {
		t.Fatalf("组长报名: %v", err)
	}
	if _, err := svc.AddToGroup(context.Background(), f.comp.CompetitionUUID, creator.ID, []uint64{member.ID}); err != nil {
		t.Fatalf("拉组员: %v", err)
	}

	// 普通组员不是组长，无权拉人
	_, err := svc.AddToGroup(context.Background(), f.comp.CompetitionUUID, member.ID, []uint64{outsider.ID})
	if !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("非组长拉人应返回 authorization, 实际 %v", err)
	}
}

func TestAddToGroupMemberOfOtherGroupIsConflict(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	creatorA := f.addPlayer(t, "组长A", 6.0)
	creatorB := f.addPlayer(t, "组长B", 7.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, creatorA.ID, model.ModeCreateGroup); err != nil {
		t.Fatalf("组长A报名: %v", err)
	}
	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, creatorB.ID, model.ModeCreateGroup); err != nil {
		t.Fatalf("组长B报名: %v", err)
	}

	_, err := svc.AddToGroup(context.Background(), f.comp.CompetitionUUID, creatorA.ID, []uint64{creatorB.ID})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("拉已在其他组的球员应返回 conflict, 实际 %v", err)
	}
}

func TestLeaveGroupReleasesEmptyTeeTime(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	reg, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeSolo)
	if err != nil {
		t.Fatalf("报名: %v", err)
	}
	teeTimeID := *reg.TeeTimeID

	if err := svc.LeaveGroup(context.Background(), f.comp.CompetitionUUID, player.ID); err != nil {
		t.Fatalf("LeaveGroup: %v", err)
	}

	var after model.Registration
	if err := f.db.Where("id = ?", reg.ID).First(&after).Error; err != nil {
		t.Fatalf("查报名行: %v", err)
	}
	if after.Status != model.StatusLookingForGroup {
		t.Fatalf("离组后状态 = %s, 期望 looking_for_group", after.Status)
	}
	if after.TeeTimeID != nil || after.ParticipantID != nil {
		t.Fatal("离组后关联应清空")
	}

	var teeTimes int64
	f.db.Model(&model.TeeTime{}).Where("id = ?", teeTimeID).Count(&teeTimes)
	if teeTimes != 0 {
		t.Fatal("最后一名成员离开后开球组应被释放")
	}
}

func TestRemoveFromGroupByCreator(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	creator := f.addPlayer(t, "组长", 6.0)
	member := f.addPlayer(t, "组员", 9.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, creator.ID, model.ModeCreateGroup); err != nil {
		t.Fatalf("组长报名: %v", err)
	}
	if _, err := svc.AddToGroup(context.Background(), f.comp.CompetitionUUID, creator.ID, []uint64{member.ID}); err != nil {
		t.Fatalf("拉组员: %v", err)
	}

	if err := svc.RemoveFromGroup(context.Background(), f.comp.CompetitionUUID, creator.ID, member.ID); err != nil {
		t.Fatalf("RemoveFromGroup: %v", err)
	}
	var after model.Registration
	if err := f.db.Where("competition_id = ? AND player_id = ?", f.comp.ID, member.ID).First(&after).Error; err != nil {
		t.Fatalf("查报名行: %v", err)
	}
	if after.Status != model.StatusLookingForGroup {
		t.Fatalf("被移出后状态 = %s, 期望 looking_for_group", after.Status)
	}
}

func TestStartPlayingIdempotent(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeSolo); err != nil {
		t.Fatalf("报名: %v", err)
	}
	first, err := svc.StartPlaying(context.Background(), f.comp.CompetitionUUID, player.ID)
	if err != nil {
		t.Fatalf("首次开打: %v", err)
	}
	if first.Status != model.StatusPlaying {
		t.Fatalf("状态 = %s, 期望 playing", first.Status)
	}

	// 重复开打幂等成功
	again, err := svc.StartPlaying(context.Background(), f.comp.CompetitionUUID, player.ID)
	if err != nil {
		t.Fatalf("重复开打应幂等成功: %v", err)
	}
	if again.Status != model.StatusPlaying {
		t.Fatalf("状态 = %s, 期望 playing", again.Status)
	}
}

func TestStartPlayingFromLookingForGroupRejected(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeLookingForGroup); err != nil {
		t.Fatalf("报名: %v", err)
	}
	_, err := svc.StartPlaying(context.Background(), f.comp.CompetitionUUID, player.ID)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("未分组开打应返回 conflict, 实际 %v", err)
	}
}

func TestFinishRoundTerminal(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeSolo); err != nil {
		t.Fatalf("报名: %v", err)
	}
	if _, err := svc.StartPlaying(context.Background(), f.comp.CompetitionUUID, player.ID); err != nil {
		t.Fatalf("开打: %v", err)
	}
	reg, err := svc.FinishRound(context.Background(), f.comp.CompetitionUUID, player.ID)
	if err != nil {
		t.Fatalf("FinishRound: %v", err)
	}
	if reg.Status != model.StatusFinished {
		t.Fatalf("状态 = %s, 期望 finished", reg.Status)
	}

	// finished 为终态，再开打被拒
	if _, err := svc.StartPlaying(context.Background(), f.comp.CompetitionUUID, player.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("完赛后开打应返回 conflict, 实际 %v", err)
	}
}

func TestWithdrawWithScoresKeepsDQCard(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	participant := f.registerSolo(t, svc, player.ID)
	if _, err := svc.StartPlaying(context.Background(), f.comp.CompetitionUUID, player.ID); err != nil {
		t.Fatalf("开打: %v", err)
	}
	if err := f.db.Create(&model.HoleScore{ParticipantID: participant.ID, HoleNumber: 1, Shots: 5}).Error; err != nil {
		t.Fatalf("写杆数: %v", err)
	}

	if err := svc.Withdraw(context.Background(), f.comp.CompetitionUUID, player.ID); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	var after model.Participant
	if err := f.db.Where("id = ?", participant.ID).First(&after).Error; err != nil {
		t.Fatalf("中途退赛的记分卡应保留: %v", err)
	}
	if !after.IsDQ {
		t.Fatal("中途退赛的记分卡应标记 DQ")
	}
}

func TestWithdrawWithoutScoresDeletesCard(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	participant := f.registerSolo(t, svc, player.ID)
	if err := svc.Withdraw(context.Background(), f.comp.CompetitionUUID, player.ID); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	var count int64
	f.db.Model(&model.Participant{}).Where("id = ?", participant.ID).Count(&count)
	if count != 0 {
		t.Fatal("空记分卡退赛后应删除")
	}
}

func TestReRegisterAfterWithdrawRevivesRow(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	first, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeSolo)
	if err != nil {
		t.Fatalf("报名: %v", err)
	}
	if err := svc.Withdraw(context.Background(), f.comp.CompetitionUUID, player.ID); err != nil {
		t.Fatalf("退赛: %v", err)
	}

	revived, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeLookingForGroup)
	if err != nil {
		t.Fatalf("重新报名: %v", err)
	}
	if revived.ID != first.ID {
		t.Fatal("重新报名应复活原报名行")
	}
	if revived.Status != model.StatusLookingForGroup {
		t.Fatalf("复活后状态 = %s, 期望 looking_for_group", revived.Status)
	}
}

func TestGetMyGroupEmptySentinel(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	// 未报名：空组哨兵而不是 NotFound
	group, err := svc.GetMyGroup(context.Background(), f.comp.CompetitionUUID, player.ID)
	if err != nil {
		t.Fatalf("GetMyGroup: %v", err)
	}
	if group.TeeTimeID != 0 || len(group.Members) != 0 {
		t.Fatalf("未报名应返回空组哨兵, 实际 %+v", group)
	}

	// 未登录同样返回空组哨兵
	group, err = svc.GetMyGroup(context.Background(), f.comp.CompetitionUUID, 0)
	if err != nil {
		t.Fatalf("GetMyGroup(未登录): %v", err)
	}
	if group.TeeTimeID != 0 || len(group.Members) != 0 {
		t.Fatalf("未登录应返回空组哨兵, 实际 %+v", group)
	}
}

func TestMyToursAndActiveRoundsUnauthenticated(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())

	tours, err := svc.MyTours(context.Background(), 0)
	if err != nil {
		t.Fatalf("MyTours: %v", err)
	}
	if tours == nil || len(tours) != 0 {
		t.Fatalf("未登录应返回空集合, 实际 %v", tours)
	}

	rounds, err := svc.MyActiveRounds(context.Background(), 0)
	if err != nil {
		t.Fatalf("MyActiveRounds: %v", err)
	}
	if rounds == nil || len(rounds) != 0 {
		t.Fatalf("未登录应返回空集合, 实际 %v", rounds)
	}
}

func TestRegistrationBlockedAfterFinalize(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	if err := f.db.Model(&model.Competition{}).Where("id = ?", f.comp.ID).
		Update("is_results_final", true).Error; err != nil {
		t.Fatalf("定格比赛: %v", err)
	}
	_, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeSolo)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("定格后报名应返回 conflict, 实际 %v", err)
	}
}

func TestCommitTransitionStaleStatusIsConflict(t *testing.T) {
	f := newFixture(t, model.ScoringGross)
	svc := NewRegistrationService(f.db, nil, testLogger())
	player := f.addPlayer(t, "张伟", 5.0)

	if _, err := svc.Register(context.Background(), f.comp.CompetitionUUID, player.ID, model.ModeLookingForGroup); err != nil {
		t.Fatalf("报名: %v", err)
	}
	var stale model.Registration
	if err := f.db.Where("competition_id = ? AND player_id = ?", f.comp.ID, player.ID).First(&stale).Error; err != nil {
		t.Fatalf("查报名: %v", err)
	}

	// 读取之后状态被另一请求改写，内存里的报名行已陈旧
	if err := f.db.Model(&model.Registration{}).Where("id = ?", stale.ID).
		Update("status", model.StatusRegistered).Error; err != nil {
		t.Fatalf("改状态: %v", err)
	}

	err := svc.commitTransition(f.db, &stale, model.StatusWithdrawn, nil)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("陈旧状态提交应返回 conflict, 实际 %v", err)
	}

	var fresh model.Registration
	if err := f.db.Where("id = ?", stale.ID).First(&fresh).Error; err != nil {
		t.Fatalf("查报名: %v", err)
	}
	if fresh.Status != model.StatusRegistered {
		t.Fatalf("冲突提交不应覆盖状态, 实际 %s", fresh.Status)
	}
}
