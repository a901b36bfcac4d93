package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/janhq/mention-agent/internal/domain/action"
	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/domain/status"
	"github.com/janhq/mention-agent/internal/infrastructure/database/entities"
)

// Postgres is the durable history. Positive lookups are cached in process;
// misses always go to the database so replicas see each other's records.
type Postgres struct {
	db    *gorm.DB
	known *lru.Cache
	log   zerolog.Logger
}

// NewPostgres creates a history backed by db with a cache of cacheSize URIs.
func NewPostgres(db *gorm.DB, cacheSize int, log zerolog.Logger) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("history: nil database")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultSize
	}
	known, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create history cache: %w", err)
	}
	return &Postgres{
		db:    db,
		known: known,
		log:   log.With().Str("component", "history").Logger(),
	}, nil
}

// Contains reports whether uri has a stored record.
func (p *Postgres) Contains(ctx context.Context, notificationURI string) (bool, error) {
	if p.known.Contains(notificationURI) {
		return true, nil
	}
	var count int64
	err := p.db.WithContext(ctx).
		Model(&entities.ReplyRecord{}).
		Where("notification_uri = ?", notificationURI).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query history: %w", err)
	}
	if count > 0 {
		p.known.Add(notificationURI, struct{}{})
		return true, nil
	}
	return false, nil
}

// Record upserts record keyed by its notification URI.
func (p *Postgres) Record(ctx context.Context, record notification.Record) error {
	row, err := toEntity(record)
	if err != nil {
		return err
	}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "notification_uri"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"thread_root_uri", "author_handle", "outcome", "reply_uri", "run_id",
			"error_message", "consume_error", "executions", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("store history: %w", err)
	}
	p.known.Add(record.NotificationURI, struct{}{})
	p.log.Debug().
		Str("notification_uri", record.NotificationURI).
		Str("outcome", string(record.Outcome)).
		Msg("history recorded")
	return nil
}

// Recent returns the newest records, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]notification.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []entities.ReplyRecord
	if err := p.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]notification.Record, 0, len(rows))
	for i := range rows {
		record, err := fromEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func toEntity(record notification.Record) (*entities.ReplyRecord, error) {
	var executions datatypes.JSON
	if len(record.Executions) > 0 {
		data, err := json.Marshal(record.Executions)
		if err != nil {
			return nil, fmt.Errorf("encode executions: %w", err)
		}
		executions = datatypes.JSON(data)
	}
	return &entities.ReplyRecord{
		NotificationURI: record.NotificationURI,
		ThreadRootURI:   record.ThreadRootURI,
		AuthorHandle:    record.AuthorHandle,
		Outcome:         string(record.Outcome),
		ReplyURI:        record.ReplyURI,
		RunID:           record.RunID,
		ErrorMessage:    record.Error,
		ConsumeError:    record.ConsumeError,
		Executions:      executions,
		CreatedAt:       record.CreatedAt,
	}, nil
}

func fromEntity(row *entities.ReplyRecord) (notification.Record, error) {
	record := notification.Record{
		NotificationURI: row.NotificationURI,
		ThreadRootURI:   row.ThreadRootURI,
		AuthorHandle:    row.AuthorHandle,
		Outcome:         status.Outcome(row.Outcome),
		ReplyURI:        row.ReplyURI,
		RunID:           row.RunID,
		Error:           row.ErrorMessage,
		ConsumeError:    row.ConsumeError,
		CreatedAt:       row.CreatedAt,
	}
	if len(row.Executions) > 0 {
		var executions []action.Execution
		if err := json.Unmarshal(row.Executions, &executions); err != nil {
			return notification.Record{}, fmt.Errorf("decode executions: %w", err)
		}
		record.Executions = executions
	}
	return record, nil
}

var _ notification.History = (*Postgres)(nil)
