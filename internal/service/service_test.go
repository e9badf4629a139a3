package service

import (
	"context"
	"io"
	"testing"

	"GolfTour/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB 每个测试用独立的内存库；单连接避免内存库随连接关闭被回收
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开内存库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取SQL DB失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.PointTemplate{},
		&model.Tour{},
		&model.Player{},
		&model.Course{},
		&model.Tee{},
		&model.Competition{},
		&model.TeeTime{},
		&model.Participant{},
		&model.Registration{},
		&model.HoleScore{},
		&model.Category{},
		&model.CategoryMember{},
		&model.FinalResult{},
	); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}
	return db
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fixture 一场可报名的比赛：18洞球场 + 坡度125的默认发球台
type fixture struct {
	db   *gorm.DB
	comp *model.Competition
	tee  *model.Tee
}

func newFixture(t *testing.T, scoring model.ScoringMode) *fixture {
	t.Helper()
	db := testDB(t)

	course := &model.Course{Name: "翠湖球场", HoleCount: 18}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("建球场失败: %v", err)
	}
	tee := &model.Tee{CourseID: course.ID, Name: "白T", SlopeRating: 125, CourseRating: 71.2, Par: 72}
	if err := db.Create(tee).Error; err != nil {
		t.Fatalf("建发球台失败: %v", err)
	}
	comp := &model.Competition{
		CompetitionUUID:  uuid.NewString(),
		Name:             "月例赛",
		CourseID:         course.ID,
		DefaultTeeID:     tee.ID,
		ScoringMode:      scoring,
		PointsMultiplier: 1,
		StartMode:        model.StartOpen,
		Status:           model.CompetitionActive,
	}
	if err := db.Create(comp).Error; err != nil {
		t.Fatalf("建比赛失败: %v", err)
	}
	return &fixture{db: db, comp: comp, tee: tee}
}

func (f *fixture) addPlayer(t *testing.T, name string, handicap float64) *model.Player {
	t.Helper()
	p := &model.Player{Name: name, HandicapIndex: handicap}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("建球员失败: %v", err)
	}
	return p
}

// registerSolo 报名并返回记分卡（solo 模式直接分配记分卡）
func (f *fixture) registerSolo(t *testing.T, svc *RegistrationService, playerID uint64) *model.Participant {
	t.Helper()
	reg, err := svc.Register(context.Background(), f.comp.CompetitionUUID, playerID, model.ModeSolo)
	if err != nil {
		t.Fatalf("报名失败: %v", err)
	}
	if reg.ParticipantID == nil {
		t.Fatal("solo 报名应分配记分卡")
	}
	var p model.Participant
	if err := f.db.Where("id = ?", *reg.ParticipantID).First(&p).Error; err != nil {
		t.Fatalf("查记分卡失败: %v", err)
	}
	return &p
}
