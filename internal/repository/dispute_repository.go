package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
)

var (
	// ErrDisputeNotFound возвращается, когда спор не найден.
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeAlreadyOpen возвращается при повторном открытии спора по сделке.
	ErrDisputeAlreadyOpen = errors.New("dispute already open for this deal")
	// ErrDisputeResolved возвращается при попытке разрешить закрытый спор.
	ErrDisputeResolved = errors.New("dispute already resolved")
	// ErrUnsupportedResolution возвращается для нереализованных комбинаций
	// типа сделки и действия.
	ErrUnsupportedResolution = errors.New("unsupported resolution for deal type")
	// ErrMissingPaymentIntent возвращается, когда у платежа нет payment intent
	// и возврат невозможен.
	ErrMissingPaymentIntent = errors.New("payment has no payment intent")
)

// RefundFunc выполняет возврат платежа во внешнем провайдере и возвращает
// идентификатор возврата. Вызывается внутри транзакции резолюции: если
// возврат падает, вся резолюция откатывается.
type RefundFunc func(ctx context.Context, payment *models.Payment) (string, error)

// DisputeRepository отвечает за таблицу disputes и атомарную резолюцию
// споров: возвраты, леджер платежей, статус сделки и закрытие спора
// меняются в одной транзакции.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт экземпляр репозитория.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Open открывает спор по сделке. На сделку допускается один открытый
// спор; для продажи сделка принудительно переводится в under_dispute,
// для обмена статус сделки не меняется — источником истины до
// резолюции служит сам открытый спор.
func (r *DisputeRepository) Open(ctx context.Context, d *models.Dispute) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM disputes
			WHERE deal_type = $1 AND deal_id = $2 AND status = 'open'
		)
	`, d.DealType, d.DealID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: check open %w", err)
	}
	if exists {
		return nil, ErrDisputeAlreadyOpen
	}

	offer, err := lockOffer(ctx, tx, d.DealID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(d.OpenedBy) {
		return nil, ErrNotParticipant
	}

	switch d.DealType {
	case models.DealTypeSale:
		if offer.Type != models.OfferTypeBuy {
			return nil, ErrInvalidTransition
		}
		if d.OpenedBy == offer.SenderID {
			d.OpenedByRole = models.DisputeRoleBuyer
		} else {
			d.OpenedByRole = models.DisputeRoleSeller
		}
		if offer.SaleStatus.CanForceDispute() {
			if _, err := tx.ExecContext(ctx, `UPDATE offers SET sale_status = 'under_dispute', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
				return nil, fmt.Errorf("dispute repository: force under_dispute %w", err)
			}
			offer.SaleStatus = models.SaleStatusUnderDispute
		}
	case models.DealTypeSwapEqual, models.DealTypeSwapUnequal:
		if offer.Type != models.OfferTypeExchange {
			return nil, ErrInvalidTransition
		}
		if d.OpenedBy == offer.SenderID {
			d.OpenedByRole = models.DisputeRolePartyA
		} else {
			d.OpenedByRole = models.DisputeRolePartyB
		}
	default:
		return nil, fmt.Errorf("dispute repository: unknown deal type %q", d.DealType)
	}

	query := `
		INSERT INTO disputes (deal_type, deal_id, opened_by, opened_by_role, reason_code, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'open')
		RETURNING id, status, created_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		d.DealType, d.DealID, d.OpenedBy, d.OpenedByRole, d.ReasonCode, d.Description,
	).Scan(&d.ID, &d.Status, &d.CreatedAt); err != nil {
		return nil, fmt.Errorf("dispute repository: open %w", err)
	}

	return offer, tx.Commit()
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}

	return &dispute, nil
}

// GetLatestByDeal возвращает последний спор по сделке.
func (r *DisputeRepository) GetLatestByDeal(ctx context.Context, dealType string, dealID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `
		SELECT * FROM disputes
		WHERE deal_type = $1 AND deal_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &dispute, query, dealType, dealID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get latest by deal %w", err)
	}

	return &dispute, nil
}

// List возвращает споры, опционально фильтруя по статусу.
func (r *DisputeRepository) List(ctx context.Context, status models.DisputeStatus) ([]models.Dispute, error) {
	var disputes []models.Dispute
	query := `SELECT * FROM disputes`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &disputes, query, args...); err != nil {
		return nil, fmt.Errorf("dispute repository: list %w", err)
	}

	return disputes, nil
}

// Resolve разрешает открытый спор. Возвраты выполняются через refund
// внутри транзакции: упавший возврат откатывает резолюцию целиком.
// Уже возвращённые платежи повторно не возвращаются.
func (r *DisputeRepository) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, action, note string, refund RefundFunc) (*models.Dispute, *models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var dispute models.Dispute
	if err := tx.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1 FOR UPDATE`, disputeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrDisputeNotFound
		}
		return nil, nil, fmt.Errorf("dispute repository: lock dispute %w", err)
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, nil, ErrDisputeResolved
	}

	if dispute.DealType == models.DealTypeSwapUnequal {
		return nil, nil, ErrUnsupportedResolution
	}

	offer, err := lockOffer(ctx, tx, dispute.DealID)
	if err != nil {
		return nil, nil, err
	}

	var finalStatus models.DisputeStatus

	switch {
	case dispute.DealType == models.DealTypeSale && action == models.ResolutionRefundBuyer:
		if err := r.refundLatestSalePayment(ctx, tx, offer, refund); err != nil {
			return nil, nil, err
		}
		if offer.SaleStatus.CanForceRefund() {
			if _, err := tx.ExecContext(ctx, `UPDATE offers SET sale_status = 'refunded', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
				return nil, nil, fmt.Errorf("dispute repository: mark refunded %w", err)
			}
			offer.SaleStatus = models.SaleStatusRefunded
		}
		finalStatus = models.DisputeStatusResolvedRefunded

	case dispute.DealType == models.DealTypeSale && action == models.ResolutionReject:
		finalStatus = models.DisputeStatusResolvedRejected

	case dispute.DealType == models.DealTypeSwapEqual && action == models.ResolutionRefundBothSides:
		if err := r.refundProtectionFees(ctx, tx, offer, refund); err != nil {
			return nil, nil, err
		}
		if offer.SwapStatus.CanForceFail() {
			if _, err := tx.ExecContext(ctx, `UPDATE offers SET swap_status = 'failed_swap', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
				return nil, nil, fmt.Errorf("dispute repository: mark failed %w", err)
			}
			offer.SwapStatus = models.SwapStatusFailed
		}
		finalStatus = models.DisputeStatusResolvedRefunded

	case dispute.DealType == models.DealTypeSwapEqual && action == models.ResolutionReject:
		finalStatus = models.DisputeStatusResolvedRejected

	default:
		return nil, nil, ErrUnsupportedResolution
	}

	if err := tx.GetContext(ctx, &dispute, `
		UPDATE disputes
		SET status = $2, resolution_note = $3, resolved_by = $4, resolved_at = NOW()
		WHERE id = $1
		RETURNING *
	`, dispute.ID, finalStatus, note, adminID); err != nil {
		return nil, nil, fmt.Errorf("dispute repository: close dispute %w", err)
	}

	return &dispute, offer, tx.Commit()
}

// refundLatestSalePayment возвращает последний платёж покупателя.
func (r *DisputeRepository) refundLatestSalePayment(ctx context.Context, tx *sqlx.Tx, offer *models.Offer, refund RefundFunc) error {
	var payment models.Payment
	err := tx.GetContext(ctx, &payment, `
		SELECT * FROM payments
		WHERE offer_id = $1 AND type = 'sale_payment' AND status IN ('succeeded', 'refunded')
		ORDER BY created_at DESC
		LIMIT 1
	`, offer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("dispute repository: find sale payment %w", err)
	}

	return refundPayment(ctx, tx, &payment, refund)
}

// refundProtectionFees возвращает защитные взносы обоих участников.
func (r *DisputeRepository) refundProtectionFees(ctx context.Context, tx *sqlx.Tx, offer *models.Offer, refund RefundFunc) error {
	var payments []models.Payment
	err := tx.SelectContext(ctx, &payments, `
		SELECT * FROM payments
		WHERE offer_id = $1 AND type = 'protection_fee' AND status IN ('succeeded', 'refunded')
	`, offer.ID)
	if err != nil {
		return fmt.Errorf("dispute repository: find protection fees %w", err)
	}

	for i := range payments {
		if err := refundPayment(ctx, tx, &payments[i], refund); err != nil {
			return err
		}
	}

	return nil
}

// refundPayment выполняет возврат одного платежа, пропуская уже
// возвращённые ряды.
func refundPayment(ctx context.Context, tx *sqlx.Tx, payment *models.Payment, refund RefundFunc) error {
	if payment.Status == models.PaymentStatusRefunded {
		return nil
	}
	if payment.StripePaymentIntentID == nil || *payment.StripePaymentIntentID == "" {
		return ErrMissingPaymentIntent
	}

	refundID, err := refund(ctx, payment)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'refunded', stripe_refund_id = $2, updated_at = NOW()
		WHERE id = $1
	`, payment.ID, refundID); err != nil {
		return fmt.Errorf("dispute repository: mark payment refunded %w", err)
	}
	payment.Status = models.PaymentStatusRefunded

	return nil
}
