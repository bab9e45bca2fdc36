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

// ErrPaymentNotFound возвращается, когда платёж не найден.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRepository отвечает за леджер платежей и связанные с оплатой
// переходы статусов сделки. Подтверждение платежа и пересчёт статуса
// выполняются в одной транзакции под блокировкой ряда оффера.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository создаёт экземпляр репозитория.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePending добавляет pending ряд леджера под созданную Stripe-сессию.
// Брошенные сессии так и остаются pending: повторная попытка оплаты
// создаёт новый ряд.
func (r *PaymentRepository) CreatePending(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (offer_id, user_id, type, status, amount_cents, currency, stripe_session_id)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6)
		RETURNING id, status, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		p.OfferID, p.UserID, p.Type, p.AmountCents, p.Currency, p.StripeSessionID,
	).Scan(&p.ID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("payment repository: create pending %w", err)
	}

	return nil
}

// GetByID возвращает платёж по идентификатору.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, `SELECT * FROM payments WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by id %w", err)
	}

	return &payment, nil
}

// GetBySessionID возвращает платёж по идентификатору Stripe-сессии.
func (r *PaymentRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, `SELECT * FROM payments WHERE stripe_session_id = $1`, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by session id %w", err)
	}

	return &payment, nil
}

// ListByOffer возвращает леджер платежей сделки.
func (r *PaymentRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	query := `SELECT * FROM payments WHERE offer_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &payments, query, offerID); err != nil {
		return nil, fmt.Errorf("payment repository: list by offer %w", err)
	}

	return payments, nil
}

// ConfirmProtectionFee подтверждает оплату защитного взноса. Статус
// сделки выводится из числа успешных взносов, поэтому повтор вебхука
// и любой порядок прихода двух оплат дают один и тот же результат.
func (r *PaymentRepository) ConfirmProtectionFee(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	payment, offer, err := lockPaymentAndOffer(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Type != models.PaymentTypeProtectionFee {
		return nil, fmt.Errorf("payment repository: payment %s is not a protection fee", payment.ID)
	}

	if payment.Status == models.PaymentStatusPending {
		if _, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET status = 'succeeded', stripe_payment_intent_id = $2, updated_at = NOW()
			WHERE id = $1
		`, payment.ID, paymentIntentID); err != nil {
			return nil, fmt.Errorf("payment repository: confirm fee %w", err)
		}
	}

	var succeeded int
	err = tx.GetContext(ctx, &succeeded, `
		SELECT COUNT(DISTINCT user_id) FROM payments
		WHERE offer_id = $1 AND type = 'protection_fee' AND status = 'succeeded'
	`, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("payment repository: count fees %w", err)
	}

	// Оба участника заплатили — обмен становится защищённым.
	if succeeded >= 2 && offer.SwapStatus == models.SwapStatusAwaitingPayment {
		if !offer.SwapStatus.CanTransition(models.SwapStatusProtectedActive) {
			return nil, ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx, `UPDATE offers SET swap_status = 'protected_active', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
			return nil, fmt.Errorf("payment repository: activate protection %w", err)
		}
		offer.SwapStatus = models.SwapStatusProtectedActive
	}

	return offer, tx.Commit()
}

// ConfirmSalePayment подтверждает оплату покупателя и переводит продажу
// в buyer_paid. Повторное подтверждение идемпотентно.
func (r *PaymentRepository) ConfirmSalePayment(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	payment, offer, err := lockPaymentAndOffer(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Type != models.PaymentTypeSalePayment {
		return nil, fmt.Errorf("payment repository: payment %s is not a sale payment", payment.ID)
	}

	if payment.Status == models.PaymentStatusPending {
		if _, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET status = 'succeeded', stripe_payment_intent_id = $2, updated_at = NOW()
			WHERE id = $1
		`, payment.ID, paymentIntentID); err != nil {
			return nil, fmt.Errorf("payment repository: confirm sale payment %w", err)
		}
	}

	if offer.SaleStatus == models.SaleStatusAwaitingPayment {
		if !offer.SaleStatus.CanTransition(models.SaleStatusBuyerPaid) {
			return nil, ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx, `UPDATE offers SET sale_status = 'buyer_paid', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
			return nil, fmt.Errorf("payment repository: mark buyer paid %w", err)
		}
		offer.SaleStatus = models.SaleStatusBuyerPaid
	}

	return offer, tx.Commit()
}

// ConfirmSwapShipping подтверждает оплату доставки участника обмена.
// Статус сделки здесь не трогается: его двигает запись отправления,
// которую сервис выполняет после покупки лейбла.
func (r *PaymentRepository) ConfirmSwapShipping(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	payment, _, err := lockPaymentAndOffer(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Type != models.PaymentTypeSwapShipping {
		return nil, fmt.Errorf("payment repository: payment %s is not a shipping payment", payment.ID)
	}

	if payment.Status == models.PaymentStatusPending {
		if _, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET status = 'succeeded', stripe_payment_intent_id = $2, updated_at = NOW()
			WHERE id = $1
		`, payment.ID, paymentIntentID); err != nil {
			return nil, fmt.Errorf("payment repository: confirm shipping payment %w", err)
		}
		payment.Status = models.PaymentStatusSucceeded
		payment.StripePaymentIntentID = &paymentIntentID
	}

	return payment, tx.Commit()
}

// lockPaymentAndOffer лочит сперва оффер, затем читает платёж: порядок
// блокировок во всех составных операциях одинаковый, от оффера вниз.
func lockPaymentAndOffer(ctx context.Context, tx *sqlx.Tx, paymentID uuid.UUID) (*models.Payment, *models.Offer, error) {
	var offerID uuid.UUID
	if err := tx.GetContext(ctx, &offerID, `SELECT offer_id FROM payments WHERE id = $1`, paymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, fmt.Errorf("payment repository: resolve offer %w", err)
	}

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, nil, err
	}

	var payment models.Payment
	if err := tx.GetContext(ctx, &payment, `SELECT * FROM payments WHERE id = $1`, paymentID); err != nil {
		return nil, nil, fmt.Errorf("payment repository: get payment %w", err)
	}

	return &payment, offer, nil
}
