package store

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kgr0831/relay/internal/roomcore"
)

// patchRow is the durable row shape for one accepted egress patch,
// grounded on the VoiceRecord conversion in the teacher's
// saveTranscriptsToDatabase (internal/handler/room_hub.go) — the cold-path
// counterpart to Redis's hot path.
type patchRow struct {
	ID         uint `gorm:"primaryKey"`
	RoomID     string `gorm:"index"`
	UnitID     string
	Stage      string
	Version    int
	Text       string
	SrcLang    string
	TargetLang string
	TTSFinal   bool
	Provider   string
	RecordedAt time.Time `gorm:"index"`
}

func (patchRow) TableName() string { return "relay_patch_history" }

// queueRow is the durable row shape for one persisted TTS Queue item.
type queueRow struct {
	ID         uint `gorm:"primaryKey"`
	RoomID     string `gorm:"index:idx_queue_room_lang"`
	Lang       string `gorm:"index:idx_queue_room_lang"`
	UnitID     string
	RootUnitID string
	Text       string
	Voice      string
	DurationMs int64
	SentLen    *int
	Version    int
	CreatedAt  time.Time
}

func (queueRow) TableName() string { return "relay_tts_queue_state" }

// Postgres is the durable Store backend. Grounded on the teacher's
// gorm.io/driver/postgres usage (internal/model's AutoMigrate-based tables).
type Postgres struct {
	db *gorm.DB
}

// NewPostgres opens a connection and migrates the relay's tables.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&patchRow{}, &queueRow{}); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) AppendPatch(ctx context.Context, roomID string, patch roomcore.EgressPatch) error {
	row := patchRow{
		RoomID:     roomID,
		UnitID:     patch.UnitID,
		Stage:      string(patch.Stage),
		Version:    patch.Version,
		Text:       patch.Text,
		SrcLang:    patch.SrcLang,
		TargetLang: patch.TargetLang,
		TTSFinal:   patch.TTSFinal,
		Provider:   patch.Provider,
		RecordedAt: time.Now(),
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *Postgres) PatchHistory(ctx context.Context, roomID string, since time.Time) ([]roomcore.EgressPatch, error) {
	var rows []patchRow
	if err := p.db.WithContext(ctx).
		Where("room_id = ? AND recorded_at > ?", roomID, since).
		Order("recorded_at asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]roomcore.EgressPatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, roomcore.EgressPatch{
			UnitID:     r.UnitID,
			Stage:      roomcore.Stage(r.Stage),
			Op:         "replace",
			Version:    r.Version,
			Text:       r.Text,
			SrcLang:    r.SrcLang,
			TargetLang: r.TargetLang,
			TTSFinal:   r.TTSFinal,
			EmittedAt:  r.RecordedAt,
			Provider:   r.Provider,
		})
	}
	return out, nil
}

func (p *Postgres) SaveQueueState(ctx context.Context, roomID, lang string, items []QueueItem) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ? AND lang = ?", roomID, lang).Delete(&queueRow{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		rows := make([]queueRow, 0, len(items))
		for _, it := range items {
			rows = append(rows, queueRow{
				RoomID:     roomID,
				Lang:       lang,
				UnitID:     it.UnitID,
				RootUnitID: it.RootUnitID,
				Text:       it.Text,
				Voice:      it.Voice,
				DurationMs: it.Duration.Milliseconds(),
				SentLen:    it.SentLen,
				Version:    it.Version,
				CreatedAt:  it.CreatedAt,
			})
		}
		return tx.Create(&rows).Error
	})
}

func (p *Postgres) LoadQueueState(ctx context.Context, roomID, lang string) ([]QueueItem, error) {
	var rows []queueRow
	if err := p.db.WithContext(ctx).
		Where("room_id = ? AND lang = ?", roomID, lang).
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]QueueItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, QueueItem{
			UnitID:     r.UnitID,
			RootUnitID: r.RootUnitID,
			Lang:       lang,
			Text:       r.Text,
			Voice:      r.Voice,
			Duration:   time.Duration(r.DurationMs) * time.Millisecond,
			CreatedAt:  r.CreatedAt,
			SentLen:    r.SentLen,
			Version:    r.Version,
		})
	}
	return out, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*Postgres)(nil)
