package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repositories struct {
	Escrows    ports.EscrowRepository
	AdminIndex ports.AdminIndexRepository
	Agreements ports.PaymentAgreementRepository
	Outbox     ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Escrows:    &escrowRepository{db: db},
		AdminIndex: &adminIndexRepository{db: db},
		Agreements: &paymentAgreementRepository{db: db},
		Outbox:     &outboxRepository{db: db},
	}
}

type escrowModel struct {
	EscrowID         string    `gorm:"column:escrow_id;primaryKey"`
	Admins           string    `gorm:"column:admins;type:jsonb"`
	Contributions    string    `gorm:"column:contributions;type:jsonb"`
	Amount           int64     `gorm:"column:amount"`
	TotalContributed int64     `gorm:"column:total_contributed"`
	IsFrozen         bool      `gorm:"column:is_frozen"`
	IsOpen           bool      `gorm:"column:is_open"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (escrowModel) TableName() string { return "escrow_accounts" }

type escrowRepository struct {
	db *gorm.DB
}

func (r *escrowRepository) Create(ctx context.Context, row domain.EscrowAccount) error {
	model, err := toEscrowModel(row)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrConflict
	}
	return err
}

func (r *escrowRepository) Get(ctx context.Context, escrowID string) (domain.EscrowAccount, error) {
	var model escrowModel
	err := r.db.WithContext(ctx).First(&model, "escrow_id = ?", escrowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.EscrowAccount{}, domain.ErrNoSuchEscrow
	}
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	return fromEscrowModel(model)
}

func (r *escrowRepository) Update(ctx context.Context, row domain.EscrowAccount) error {
	model, err := toEscrowModel(row)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&escrowModel{}).Where("escrow_id = ?", row.EscrowID).Updates(map[string]any{
		"admins":            model.Admins,
		"contributions":     model.Contributions,
		"amount":            model.Amount,
		"total_contributed": model.TotalContributed,
		"is_frozen":         model.IsFrozen,
		"is_open":           model.IsOpen,
		"updated_at":        model.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNoSuchEscrow
	}
	return nil
}

func (r *escrowRepository) Delete(ctx context.Context, escrowID string) error {
	res := r.db.WithContext(ctx).Delete(&escrowModel{}, "escrow_id = ?", escrowID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNoSuchEscrow
	}
	return nil
}

func toEscrowModel(row domain.EscrowAccount) (escrowModel, error) {
	admins, err := json.Marshal(row.Admins)
	if err != nil {
		return escrowModel{}, err
	}
	contributions, err := json.Marshal(row.Contributions)
	if err != nil {
		return escrowModel{}, err
	}
	return escrowModel{
		EscrowID:         row.EscrowID,
		Admins:           string(admins),
		Contributions:    string(contributions),
		Amount:           row.Amount,
		TotalContributed: row.TotalContributed,
		IsFrozen:         row.IsFrozen,
		IsOpen:           row.IsOpen,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func fromEscrowModel(model escrowModel) (domain.EscrowAccount, error) {
	row := domain.EscrowAccount{
		EscrowID:         model.EscrowID,
		Amount:           model.Amount,
		TotalContributed: model.TotalContributed,
		IsFrozen:         model.IsFrozen,
		IsOpen:           model.IsOpen,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(model.Admins), &row.Admins); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := json.Unmarshal([]byte(model.Contributions), &row.Contributions); err != nil {
		return domain.EscrowAccount{}, err
	}
	return row, nil
}

type adminIndexModel struct {
	AdminID   string    `gorm:"column:admin_id;primaryKey"`
	EscrowID  string    `gorm:"column:escrow_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (adminIndexModel) TableName() string { return "escrow_admin_index" }

type adminIndexRepository struct {
	db *gorm.DB
}

func (r *adminIndexRepository) Put(ctx context.Context, entry domain.AdminIndexEntry) error {
	model := adminIndexModel{AdminID: entry.AdminID, EscrowID: entry.EscrowID, CreatedAt: entry.CreatedAt}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "admin_id"}, {Name: "escrow_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"created_at"}),
	}).Create(&model).Error
}

func (r *adminIndexRepository) Remove(ctx context.Context, adminID, escrowID string) error {
	return r.db.WithContext(ctx).Delete(&adminIndexModel{}, "admin_id = ? AND escrow_id = ?", adminID, escrowID).Error
}

func (r *adminIndexRepository) ListEscrowIDs(ctx context.Context, adminID string) ([]string, error) {
	var models []adminIndexModel
	err := r.db.WithContext(ctx).
		Where("admin_id = ?", adminID).
		Order("created_at asc, escrow_id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, m.EscrowID)
	}
	return out, nil
}

type paymentAgreementModel struct {
	PayerID            string    `gorm:"column:payer_id;primaryKey"`
	PayeeID            string    `gorm:"column:payee_id;primaryKey"`
	PaymentID          string    `gorm:"column:payment_id;primaryKey"`
	RFPReferenceID     string    `gorm:"column:rfp_reference_id"`
	TotalPaymentAmount int64     `gorm:"column:total_payment_amount"`
	PaymentSchedule    string    `gorm:"column:payment_schedule;type:jsonb"`
	PaymentSource      string    `gorm:"column:payment_source"`
	PaymentAccountID   string    `gorm:"column:payment_account_id"`
	AdministratorID    string    `gorm:"column:administrator_id"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (paymentAgreementModel) TableName() string { return "payment_agreements" }

type paymentAgreementRepository struct {
	db *gorm.DB
}

func (r *paymentAgreementRepository) Create(ctx context.Context, row domain.PaymentAgreement) error {
	model, err := toAgreementModel(row)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrConflict
	}
	return err
}

func (r *paymentAgreementRepository) Get(ctx context.Context, payerID, payeeID, paymentID string) (domain.PaymentAgreement, error) {
	var model paymentAgreementModel
	err := r.db.WithContext(ctx).
		First(&model, "payer_id = ? AND payee_id = ? AND payment_id = ?", payerID, payeeID, paymentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PaymentAgreement{}, domain.ErrNoSuchPayment
	}
	if err != nil {
		return domain.PaymentAgreement{}, err
	}
	return fromAgreementModel(model)
}

func (r *paymentAgreementRepository) Update(ctx context.Context, row domain.PaymentAgreement) error {
	model, err := toAgreementModel(row)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&paymentAgreementModel{}).
		Where("payer_id = ? AND payee_id = ? AND payment_id = ?", row.PayerID, row.PayeeID, row.PaymentID).
		Updates(map[string]any{
			"payment_schedule": model.PaymentSchedule,
			"updated_at":       model.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNoSuchPayment
	}
	return nil
}

func toAgreementModel(row domain.PaymentAgreement) (paymentAgreementModel, error) {
	schedule, err := json.Marshal(row.PaymentSchedule)
	if err != nil {
		return paymentAgreementModel{}, err
	}
	return paymentAgreementModel{
		PayerID:            row.PayerID,
		PayeeID:            row.PayeeID,
		PaymentID:          row.PaymentID,
		RFPReferenceID:     row.RFPReferenceID,
		TotalPaymentAmount: row.TotalPaymentAmount,
		PaymentSchedule:    string(schedule),
		PaymentSource:      string(row.PaymentMethod.Source),
		PaymentAccountID:   row.PaymentMethod.AccountID,
		AdministratorID:    row.AdministratorID,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}, nil
}

func fromAgreementModel(model paymentAgreementModel) (domain.PaymentAgreement, error) {
	row := domain.PaymentAgreement{
		PayerID:            model.PayerID,
		PayeeID:            model.PayeeID,
		PaymentID:          model.PaymentID,
		RFPReferenceID:     model.RFPReferenceID,
		TotalPaymentAmount: model.TotalPaymentAmount,
		PaymentMethod: domain.PaymentMethod{
			Source:    domain.PaymentSource(model.PaymentSource),
			AccountID: model.PaymentAccountID,
		},
		AdministratorID: model.AdministratorID,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(model.PaymentSchedule), &row.PaymentSchedule); err != nil {
		return domain.PaymentAgreement{}, err
	}
	return row, nil
}

type outboxModel struct {
	RecordID     string     `gorm:"column:record_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	EventClass   string     `gorm:"column:event_class"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      string     `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    string     `gorm:"column:last_error"`
}

func (outboxModel) TableName() string { return "settlement_outbox" }

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	model := outboxModel{
		RecordID:     record.RecordID,
		EventType:    record.EventType,
		EventClass:   record.EventClass,
		PartitionKey: record.PartitionKey,
		Payload:      string(record.Payload),
		CreatedAt:    record.CreatedAt,
		RetryCount:   record.RetryCount,
		LastError:    record.LastError,
	}
	err := r.db.WithContext(ctx).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrConflict
	}
	return err
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []outboxModel
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at asc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(models))
	for _, m := range models {
		out = append(out, ports.OutboxRecord{
			RecordID:     m.RecordID,
			EventType:    m.EventType,
			EventClass:   m.EventClass,
			PartitionKey: m.PartitionKey,
			Payload:      []byte(m.Payload),
			CreatedAt:    m.CreatedAt,
			PublishedAt:  m.PublishedAt,
			RetryCount:   m.RetryCount,
			LastError:    m.LastError,
		})
	}
	return out, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, recordID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("record_id = ?", recordID).
		Update("published_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, recordID string, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("record_id = ?", recordID).
		Updates(map[string]any{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
