package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
)

var (
	// ErrOfferNotFound возвращается, когда оффер не найден.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrDuplicateOffer возвращается при повторном оффере на тот же подарок.
	ErrDuplicateOffer = errors.New("duplicate offer")
	// ErrGiftUnavailable возвращается, когда подарок уже залочен другой сделкой.
	ErrGiftUnavailable = errors.New("gift unavailable")
	// ErrInvalidTransition возвращается при недопустимом переходе статуса сделки.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotParticipant возвращается, когда пользователь не участвует в сделке.
	ErrNotParticipant = errors.New("user is not a deal participant")
)

// OfferRepository отвечает за таблицу offers и переходы статусов сделок.
// Все составные операции выполняются в транзакции с блокировкой ряда
// оффера (SELECT ... FOR UPDATE): конкурирующие запросы по одной сделке
// сериализуются на уровне БД.
type OfferRepository struct {
	db *sqlx.DB
}

// NewOfferRepository создаёт экземпляр репозитория.
func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `
	id, gift_id, sender_id, owner_id, type, status,
	offered_gift_id, offered_title, offered_description, offered_image_url,
	swap_status, swap_sender_confirmed, swap_owner_confirmed,
	sale_status, shipping_rate_id, shipping_cost_cents, shipping_carrier, shipping_service,
	created_at, updated_at
`

// lockOffer читает оффер под блокировкой FOR UPDATE внутри транзакции.
func lockOffer(ctx context.Context, tx *sqlx.Tx, offerID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &offer, query, offerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("offer repository: lock offer %w", err)
	}
	return &offer, nil
}

// Create создаёт оффер. Повторный pending/accepted оффер того же
// отправителя на тот же подарок отклоняется.
func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM offers
			WHERE gift_id = $1 AND sender_id = $2 AND status IN ('pending', 'accepted')
		)
	`, offer.GiftID, offer.SenderID)
	if err != nil {
		return fmt.Errorf("offer repository: check duplicate %w", err)
	}
	if exists {
		return ErrDuplicateOffer
	}

	query := `
		INSERT INTO offers (
			gift_id, sender_id, owner_id, type, status,
			offered_gift_id, offered_title, offered_description, offered_image_url,
			swap_status, sale_status
		)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8, 'none', 'none')
		RETURNING id, status, swap_status, sale_status, created_at, updated_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		offer.GiftID, offer.SenderID, offer.OwnerID, offer.Type,
		offer.OfferedGiftID, offer.OfferedTitle, offer.OfferedDescription, offer.OfferedImageURL,
	).Scan(&offer.ID, &offer.Status, &offer.SwapStatus, &offer.SaleStatus, &offer.CreatedAt, &offer.UpdatedAt); err != nil {
		return fmt.Errorf("offer repository: create %w", err)
	}

	return tx.Commit()
}

// GetByID возвращает оффер по идентификатору.
func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	if err := r.db.GetContext(ctx, &offer, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("offer repository: get by id %w", err)
	}

	return &offer, nil
}

// ListSent возвращает офферы, отправленные пользователем.
func (r *OfferRepository) ListSent(ctx context.Context, senderID uuid.UUID) ([]models.Offer, error) {
	var offers []models.Offer
	query := `SELECT ` + offerColumns + ` FROM offers WHERE sender_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &offers, query, senderID); err != nil {
		return nil, fmt.Errorf("offer repository: list sent %w", err)
	}
	if err := r.attachGifts(ctx, offers); err != nil {
		return nil, err
	}

	return offers, nil
}

// ListReceived возвращает офферы на подарки пользователя.
func (r *OfferRepository) ListReceived(ctx context.Context, ownerID uuid.UUID) ([]models.Offer, error) {
	var offers []models.Offer
	query := `SELECT ` + offerColumns + ` FROM offers WHERE owner_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &offers, query, ownerID); err != nil {
		return nil, fmt.Errorf("offer repository: list received %w", err)
	}
	if err := r.attachGifts(ctx, offers); err != nil {
		return nil, err
	}

	return offers, nil
}

// attachGifts подгружает подарки сделки одним запросом.
func (r *OfferRepository) attachGifts(ctx context.Context, offers []models.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(offers)*2)
	for i := range offers {
		ids = append(ids, offers[i].GiftID)
		if offers[i].OfferedGiftID != nil {
			ids = append(ids, *offers[i].OfferedGiftID)
		}
	}

	var gifts []models.Gift
	query := `SELECT * FROM gifts WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &gifts, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("offer repository: attach gifts %w", err)
	}

	byID := make(map[uuid.UUID]*models.Gift, len(gifts))
	for i := range gifts {
		byID[gifts[i].ID] = &gifts[i]
	}
	for i := range offers {
		offers[i].Gift = byID[offers[i].GiftID]
		if offers[i].OfferedGiftID != nil {
			offers[i].OfferedGift = byID[*offers[i].OfferedGiftID]
		}
	}

	return nil
}

// AcceptResult — итог принятия оффера.
type AcceptResult struct {
	Offer          *models.Offer
	ExpiredSenders []uuid.UUID
}

/// Accept принимает оффер: лочит подарок, гасит конкурирующие pending
// офферы на тот же подарок и сеет стартовый статус сделки.
func (r *OfferRepository) Accept(ctx context.Context, offerID, ownerID uuid.UUID) (*AcceptResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.OwnerID != ownerID {
		return nil, ErrNotParticipant
	}
	if offer.Status != models.OfferStatusPending {
		return nil, ErrInvalidTransition
	}

	// Лочим подарок; занятый подарок принять нельзя.
	var giftStatus string
	if err := tx.GetContext(ctx, &giftStatus, `SELECT status FROM gifts WHERE id = $1 FOR UPDATE`, offer.GiftID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGiftNotFound
		}
		return nil, fmt.Errorf("offer repository: lock gift %w", err)
	}
	if giftStatus != models.GiftStatusFree {
		return nil, ErrGiftUnavailable
	}

	if _, err := tx.ExecContext(ctx, `UPDATE gifts SET status = 'locked', updated_at = NOW() WHERE id = $1`, offer.GiftID); err != nil {
		return nil, fmt.Errorf("offer repository: lock gift status %w", err)
	}
	if offer.OfferedGiftID != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE gifts SET status = 'locked', updated_at = NOW() WHERE id = $1`, *offer.OfferedGiftID); err != nil {
			return nil, fmt.Errorf("offer repository: lock offered gift %w", err)
		}
	}

	// Стартовый статус сделки зависит от типа оффера.
	swapStatus := offer.SwapStatus
	saleStatus := offer.SaleStatus
	switch offer.Type {
	case models.OfferTypeExchange:
		if !offer.SwapStatus.CanTransition(models.SwapStatusPending) {
			return nil, ErrInvalidTransition
		}
		swapStatus = models.SwapStatusPending
	case models.OfferTypeBuy:
		if !offer.SaleStatus.CanTransition(models.SaleStatusAwaitingShipping) {
			return nil, ErrInvalidTransition
		}
		saleStatus = models.SaleStatusAwaitingShipping
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE offers
		SET status = 'accepted', swap_status = $2, sale_status = $3, updated_at = NOW()
		WHERE id = $1
	`, offer.ID, swapStatus, saleStatus); err != nil {
		return nil, fmt.Errorf("offer repository: accept %w", err)
	}
	offer.Status = models.OfferStatusAccepted
	offer.SwapStatus = swapStatus
	offer.SaleStatus = saleStatus

	// Конкурирующие pending офферы на тот же подарок гаснут.
	rows, err := tx.QueryContext(ctx, `
		UPDATE offers SET status = 'expired', updated_at = NOW()
		WHERE gift_id = $1 AND id != $2 AND status = 'pending'
		RETURNING sender_id
	`, offer.GiftID, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("offer repository: expire competing %w", err)
	}
	defer rows.Close()

	var expired []uuid.UUID
	for rows.Next() {
		var senderID uuid.UUID
		if err := rows.Scan(&senderID); err != nil {
			return nil, err
		}
		expired = append(expired, senderID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &AcceptResult{Offer: offer, ExpiredSenders: expired}, nil
}

// Reject отклоняет pending оффер владельцем подарка.
func (r *OfferRepository) Reject(ctx context.Context, offerID, ownerID uuid.UUID) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.OwnerID != ownerID {
		return nil, ErrNotParticipant
	}
	if offer.Status != models.OfferStatusPending {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `UPDATE offers SET status = 'rejected', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
		return nil, fmt.Errorf("offer repository: reject %w", err)
	}
	offer.Status = models.OfferStatusRejected

	return offer, tx.Commit()
}

// Delete удаляет pending оффер его отправителем.
func (r *OfferRepository) Delete(ctx context.Context, offerID, senderID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM offers WHERE id = $1 AND sender_id = $2 AND status = 'pending'`,
		offerID, senderID,
	)
	if err != nil {
		return fmt.Errorf("offer repository: delete %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrOfferNotFound
	}

	return nil
}

// StartSwap переводит принятый обмен в ожидание оплаты защиты.
func (r *OfferRepository) StartSwap(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Type != models.OfferTypeExchange || offer.Status != models.OfferStatusAccepted {
		return nil, ErrInvalidTransition
	}
	if offer.SwapStatus == models.SwapStatusAwaitingPayment {
		// Повторный запуск идемпотентен.
		return offer, tx.Commit()
	}
	if !offer.SwapStatus.CanTransition(models.SwapStatusAwaitingPayment) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `UPDATE offers SET swap_status = 'awaiting_payment', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
		return nil, fmt.Errorf("offer repository: start swap %w", err)
	}
	offer.SwapStatus = models.SwapStatusAwaitingPayment

	return offer, tx.Commit()
}

// ConfirmSwapReceipt отмечает получение посылки участником. Когда
// подтвердили оба, обмен завершается. Повторное подтверждение
// идемпотентно.
func (r *OfferRepository) ConfirmSwapReceipt(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, ErrNotParticipant
	}

	switch offer.SwapStatus {
	case models.SwapStatusProtectedActive, models.SwapStatusShippingPartial,
		models.SwapStatusShippingCreated, models.SwapStatusCompleted:
	default:
		return nil, ErrInvalidTransition
	}

	if userID == offer.SenderID {
		offer.SwapSenderConfirmed = true
	} else {
		offer.SwapOwnerConfirmed = true
	}

	newStatus := offer.SwapStatus
	if offer.SwapSenderConfirmed && offer.SwapOwnerConfirmed && offer.SwapStatus != models.SwapStatusCompleted {
		if !offer.SwapStatus.CanTransition(models.SwapStatusCompleted) {
			return nil, ErrInvalidTransition
		}
		newStatus = models.SwapStatusCompleted
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE offers
		SET swap_sender_confirmed = $2, swap_owner_confirmed = $3, swap_status = $4, updated_at = NOW()
		WHERE id = $1
	`, offer.ID, offer.SwapSenderConfirmed, offer.SwapOwnerConfirmed, newStatus); err != nil {
		return nil, fmt.Errorf("offer repository: confirm receipt %w", err)
	}
	offer.SwapStatus = newStatus

	return offer, tx.Commit()
}

// MarkSwapFailed помечает обмен проваленным по инициативе участника.
func (r *OfferRepository) MarkSwapFailed(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, ErrNotParticipant
	}
	if !offer.SwapStatus.CanTransition(models.SwapStatusFailed) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `UPDATE offers SET swap_status = 'failed_swap', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
		return nil, fmt.Errorf("offer repository: mark failed %w", err)
	}
	offer.SwapStatus = models.SwapStatusFailed

	return offer, tx.Commit()
}

// SetSaleRate фиксирует выбранную ставку доставки и цену продажи.
// Переселект ставки допустим, пока покупатель не оплатил.
func (r *OfferRepository) SetSaleRate(ctx context.Context, offerID uuid.UUID, rateID string, costCents int64, carrier, service string) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Type != models.OfferTypeBuy || offer.Status != models.OfferStatusAccepted {
		return nil, ErrInvalidTransition
	}

	switch offer.SaleStatus {
	case models.SaleStatusAwaitingShipping, models.SaleStatusAwaitingPayment:
	default:
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE offers
		SET sale_status = 'awaiting_buyer_payment',
			shipping_rate_id = $2, shipping_cost_cents = $3,
			shipping_carrier = $4, shipping_service = $5,
			updated_at = NOW()
		WHERE id = $1
	`, offer.ID, rateID, costCents, carrier, service); err != nil {
		return nil, fmt.Errorf("offer repository: set sale rate %w", err)
	}
	offer.SaleStatus = models.SaleStatusAwaitingPayment
	offer.ShippingRateID = &rateID
	offer.ShippingCostCents = &costCents
	offer.ShippingCarrier = &carrier
	offer.ShippingService = &service

	return offer, tx.Commit()
}

// ConfirmSaleDelivery завершает продажу после подтверждения покупателя.
// Отправление помечается доставленным в той же транзакции.
func (r *OfferRepository) ConfirmSaleDelivery(ctx context.Context, offerID, buyerID uuid.UUID) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.SenderID != buyerID {
		return nil, ErrNotParticipant
	}
	if !offer.SaleStatus.CanTransition(models.SaleStatusCompleted) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `UPDATE shipments SET status = 'delivered' WHERE offer_id = $1`, offer.ID); err != nil {
		return nil, fmt.Errorf("offer repository: mark delivered %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE offers SET sale_status = 'sale_completed', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
		return nil, fmt.Errorf("offer repository: confirm delivery %w", err)
	}
	offer.SaleStatus = models.SaleStatusCompleted

	return offer, tx.Commit()
}
