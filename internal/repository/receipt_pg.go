package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// receiptRow is the archived form of a receipt. The full receipt is kept as
// JSON; the other columns exist for querying.
type receiptRow struct {
	ReceiptID   string    `gorm:"primaryKey;type:uuid"`
	OfferID     string    `gorm:"type:uuid;index:idx_fill_receipts_offer,priority:1"`
	TakerID     string    `gorm:"index"`
	Status      string    `gorm:"size:16"`
	ReasonCode  string    `gorm:"size:64"`
	Digest      string    `gorm:"size:64"`
	Payload     []byte    `gorm:"type:jsonb"`
	GeneratedAt time.Time `gorm:"index:idx_fill_receipts_offer,priority:2"`
}

func (receiptRow) TableName() string { return "fill_receipts" }

// PostgresReceiptArchive keeps every receipt past the life of the process.
type PostgresReceiptArchive struct {
	db *gorm.DB
}

func NewPostgresReceiptArchive(db *gorm.DB) (*PostgresReceiptArchive, error) {
	if err := db.AutoMigrate(&receiptRow{}); err != nil {
		return nil, err
	}
	return &PostgresReceiptArchive{db: db}, nil
}

func (r *PostgresReceiptArchive) Name() string { return "postgres" }

func (r *PostgresReceiptArchive) Insert(ctx context.Context, receipt *model.FillReceipt) error {
	if receipt == nil {
		return nil
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	row := receiptRow{
		ReceiptID:   receipt.ReceiptID.String(),
		OfferID:     receipt.Offer.ID.String(),
		TakerID:     receipt.Fill.Evidence.TakerID,
		Status:      string(receipt.Outcome.Status),
		Digest:      receipt.Digest,
		Payload:     payload,
		GeneratedAt: receipt.GeneratedAt,
	}
	if reason := receipt.Outcome.Reason; reason != nil {
		row.ReasonCode = string(reason.Code())
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// List returns an offer's archived receipts, oldest first.
func (r *PostgresReceiptArchive) List(ctx context.Context, offerID uuid.UUID, limit int) ([]*model.FillReceipt, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []receiptRow
	err := r.db.WithContext(ctx).
		Where("offer_id = ?", offerID.String()).
		Order("generated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.FillReceipt, 0, len(rows))
	for _, row := range rows {
		var receipt model.FillReceipt
		if err := json.Unmarshal(row.Payload, &receipt); err != nil {
			return nil, err
		}
		out = append(out, &receipt)
	}
	return out, nil
}

func (r *PostgresReceiptArchive) Get(ctx context.Context, receiptID uuid.UUID) (*model.FillReceipt, error) {
	var row receiptRow
	err := r.db.WithContext(ctx).First(&row, "receipt_id = ?", receiptID.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	var receipt model.FillReceipt
	if err := json.Unmarshal(row.Payload, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *PostgresReceiptArchive) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("generated_at < ?", cutoff).Delete(&receiptRow{}).Error
}
