// Package storage is the durable lap log: every committed lap outcome
// is appended to a sqlite database for audit and post-race analysis.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gridrush/engine/log"
	"github.com/gridrush/engine/pkg/model"
)

// RaceRecord is one created race.
type RaceRecord struct {
	ID        string `gorm:"primaryKey"`
	TrackName string
	TotalLaps int
	CreatedAt time.Time
}

// LapRecord is one participant outcome of one resolved lap.
type LapRecord struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	RaceID           string `gorm:"index"`
	LapNo            int
	ParticipantID    string `gorm:"index"`
	BoostValue       int
	FinalValue       int
	Movement         string
	FromSector       int
	ToSector         int
	PositionInSector int
	HeldBack         bool
	ForcedSubmit     bool
	TimedOut         bool
	Finished         bool
	FinishPosition   int
	CreatedAt        time.Time
}

// Manager handles the database connection and lap log writes.
type Manager struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewManager opens (or creates) the sqlite file and migrates the
// schema.
func NewManager(path string, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default().Named("storage")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&RaceRecord{}, &LapRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	logger.Info("lap log opened", log.String("path", path))
	return &Manager{db: db, logger: logger}, nil
}

// SaveRace records race creation.
func (m *Manager) SaveRace(ctx context.Context, raceID, trackName string, totalLaps int) error {
	rec := RaceRecord{ID: raceID, TrackName: trackName, TotalLaps: totalLaps}
	return m.db.WithContext(ctx).Create(&rec).Error
}

// SaveLapResult appends all participant outcomes of one lap in a
// single transaction.
func (m *Manager) SaveLapResult(ctx context.Context, result *model.LapResult) error {
	recs := make([]LapRecord, 0, len(result.Participants))
	for _, pr := range result.Participants {
		recs = append(recs, LapRecord{
			RaceID:           result.RaceID,
			LapNo:            pr.LapNo,
			ParticipantID:    pr.ParticipantID,
			BoostValue:       pr.BoostValue,
			FinalValue:       pr.FinalValue,
			Movement:         pr.Movement.String(),
			FromSector:       pr.FromSector,
			ToSector:         pr.ToSector,
			PositionInSector: pr.PositionInSector,
			HeldBack:         pr.HeldBack,
			ForcedSubmit:     pr.ForcedSubmit,
			TimedOut:         result.TimedOut,
			Finished:         pr.Finished,
			FinishPosition:   pr.FinishPosition,
		})
	}
	return m.db.WithContext(ctx).Create(&recs).Error
}

// LapHistory returns the stored outcomes of one participant in lap
// order.
func (m *Manager) LapHistory(ctx context.Context, raceID, participantID string) ([]LapRecord, error) {
	var recs []LapRecord
	err := m.db.WithContext(ctx).
		Where("race_id = ? AND participant_id = ?", raceID, participantID).
		Order("lap_no").
		Find(&recs).Error
	return recs, err
}

// Races lists all recorded races, newest first.
func (m *Manager) Races(ctx context.Context) ([]RaceRecord, error) {
	var recs []RaceRecord
	err := m.db.WithContext(ctx).Order("created_at desc").Find(&recs).Error
	return recs, err
}

// Close releases the underlying connection.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
