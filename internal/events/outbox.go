package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditcore/internal/orgcontext"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventType identifies the kind of outbox event.
type EventType string

const (
	EventAlertTriggered  EventType = "alert.triggered"
	EventWalletTraceable EventType = "wallet.traceable"
)

// Event is a pending notification written in the same transaction as the
// state change it announces. Delivery is handled by an external consumer.
type Event struct {
	OrgID     snowflake.ID
	Type      EventType
	Payload   map[string]any
	DedupeKey string
}

// OutboxEvent is the persisted outbox row.
type OutboxEvent struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index"`
	Type      string       `gorm:"type:text;not null"`
	Payload   string       `gorm:"type:text;not null"`
	DedupeKey string       `gorm:"type:text;not null;uniqueIndex:ux_outbox_events_dedupe"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "outbox_events" }

// Outbox writes notification events transactionally with ledger state.
type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
}

// NewOutbox creates an outbox writer.
func NewOutbox(log *zap.Logger, genID *snowflake.Node) *Outbox {
	return &Outbox{
		log:   log.Named("events.outbox"),
		genID: genID,
	}
}

// PublishTx inserts the event inside the caller's transaction. A duplicate
// dedupe key is a no-op so retried units of work never double-publish.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if event.OrgID == 0 {
		if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok {
			event.OrgID = orgID
		}
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO outbox_events (id, org_id, type, payload, dedupe_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dedupe_key) DO NOTHING`,
		o.genID.Generate(),
		event.OrgID,
		string(event.Type),
		string(payload),
		event.DedupeKey,
		time.Now().UTC(),
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		o.log.Debug("outbox event deduplicated", zap.String("dedupe_key", event.DedupeKey))
	}
	return nil
}
