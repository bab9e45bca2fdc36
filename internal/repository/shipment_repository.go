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
	// ErrShipmentNotFound возвращается, когда отправление не найдено.
	ErrShipmentNotFound = errors.New("shipment not found")
	// ErrShipmentExists возвращается, когда отправитель уже оформил лейбл по сделке.
	ErrShipmentExists = errors.New("shipment already exists")
)

// ShipmentRepository отвечает за леджер отправлений и связанные с
// доставкой переходы статусов сделки.
type ShipmentRepository struct {
	db *sqlx.DB
}

// NewShipmentRepository создаёт экземпляр репозитория.
func NewShipmentRepository(db *sqlx.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

// GetByOfferAndSender возвращает отправление участника по сделке.
func (r *ShipmentRepository) GetByOfferAndSender(ctx context.Context, offerID, senderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	query := `SELECT * FROM shipments WHERE offer_id = $1 AND sender_id = $2`
	if err := r.db.GetContext(ctx, &shipment, query, offerID, senderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("shipment repository: get by offer and sender %w", err)
	}

	return &shipment, nil
}

// ListByOffer возвращает отправления сделки.
func (r *ShipmentRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Shipment, error) {
	var shipments []models.Shipment
	query := `SELECT * FROM shipments WHERE offer_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &shipments, query, offerID); err != nil {
		return nil, fmt.Errorf("shipment repository: list by offer %w", err)
	}

	return shipments, nil
}

// CreateSwapShipment записывает купленный лейбл участника обмена и
// пересчитывает статус: одно отправление — shipping_partial, оба —
// shipping_created. Порядок, в котором участники оформляют доставку,
// значения не имеет.
func (r *ShipmentRepository) CreateSwapShipment(ctx context.Context, shipment *models.Shipment) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, shipment.OfferID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(shipment.SenderID) {
		return nil, ErrNotParticipant
	}

	switch offer.SwapStatus {
	case models.SwapStatusProtectedActive, models.SwapStatusShippingPartial:
	default:
		return nil, ErrInvalidTransition
	}

	var exists bool
	err = tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM shipments WHERE offer_id = $1 AND sender_id = $2)`,
		shipment.OfferID, shipment.SenderID,
	)
	if err != nil {
		return nil, fmt.Errorf("shipment repository: check existing %w", err)
	}
	if exists {
		return nil, ErrShipmentExists
	}

	shipment.Status = models.ShipmentStatusLabelCreated
	if err := insertShipment(ctx, tx, shipment); err != nil {
		return nil, err
	}

	var total int
	if err := tx.GetContext(ctx, &total, `SELECT COUNT(*) FROM shipments WHERE offer_id = $1`, shipment.OfferID); err != nil {
		return nil, fmt.Errorf("shipment repository: count %w", err)
	}

	newStatus := models.SwapStatusShippingPartial
	if total >= 2 {
		newStatus = models.SwapStatusShippingCreated
	}
	if offer.SwapStatus != newStatus {
		if !offer.SwapStatus.CanTransition(newStatus) {
			return nil, ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx, `UPDATE offers SET swap_status = $2, updated_at = NOW() WHERE id = $1`, offer.ID, newStatus); err != nil {
			return nil, fmt.Errorf("shipment repository: advance swap status %w", err)
		}
		offer.SwapStatus = newStatus
	}

	return offer, tx.Commit()
}

// CreateSaleShipment записывает лейбл продавца и переводит продажу в
// shipped. Отправление сразу получает статус shipped: сделка помечается
// отправленной в той же транзакции.
func (r *ShipmentRepository) CreateSaleShipment(ctx context.Context, shipment *models.Shipment) (*models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, shipment.OfferID)
	if err != nil {
		return nil, err
	}
	if offer.OwnerID != shipment.SenderID {
		return nil, ErrNotParticipant
	}
	switch offer.SaleStatus {
	case models.SaleStatusBuyerPaid, models.SaleStatusShipped:
	default:
		return nil, ErrInvalidTransition
	}

	var exists bool
	err = tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM shipments WHERE offer_id = $1 AND sender_id = $2)`,
		shipment.OfferID, shipment.SenderID,
	)
	if err != nil {
		return nil, fmt.Errorf("shipment repository: check existing %w", err)
	}
	if exists {
		return nil, ErrShipmentExists
	}

	shipment.Status = models.ShipmentStatusShipped
	if err := insertShipment(ctx, tx, shipment); err != nil {
		return nil, err
	}

	if offer.SaleStatus != models.SaleStatusShipped {
		if !offer.SaleStatus.CanTransition(models.SaleStatusShipped) {
			return nil, ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx, `UPDATE offers SET sale_status = 'shipped', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
			return nil, fmt.Errorf("shipment repository: mark shipped %w", err)
		}
		offer.SaleStatus = models.SaleStatusShipped
	}

	return offer, tx.Commit()
}

// MarkSaleShipped отмечает заказ отправленным вручную: обновляет или
// создаёт отправление продавца со статусом shipped и переводит продажу
// в shipped. Трек-номер и перевозчик, если переданы, перезаписывают
// прежние значения.
func (r *ShipmentRepository) MarkSaleShipped(ctx context.Context, offerID, sellerID uuid.UUID, trackingNumber, carrier *string) (*models.Shipment, *models.Offer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, nil, err
	}
	if offer.OwnerID != sellerID {
		return nil, nil, ErrNotParticipant
	}
	if offer.SaleStatus != models.SaleStatusBuyerPaid {
		return nil, nil, ErrInvalidTransition
	}

	var shipment models.Shipment
	err = tx.GetContext(ctx, &shipment,
		`SELECT * FROM shipments WHERE offer_id = $1 AND sender_id = $2`, offerID, sellerID)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
			UPDATE shipments
			SET status = 'shipped',
				tracking_number = COALESCE($2, tracking_number),
				carrier = COALESCE($3, carrier)
			WHERE id = $1
		`, shipment.ID, trackingNumber, carrier); err != nil {
			return nil, nil, fmt.Errorf("shipment repository: mark shipped %w", err)
		}
		shipment.Status = models.ShipmentStatusShipped
		if trackingNumber != nil {
			shipment.TrackingNumber = trackingNumber
		}
		if carrier != nil {
			shipment.Carrier = carrier
		}
	case errors.Is(err, sql.ErrNoRows):
		shipment = models.Shipment{
			OfferID:        offerID,
			SenderID:       sellerID,
			RecipientID:    offer.SenderID,
			Carrier:        carrier,
			CostCents:      offer.ShippingCostCents,
			TrackingNumber: trackingNumber,
			Status:         models.ShipmentStatusShipped,
		}
		if offer.ShippingRateID != nil {
			shipment.RateID = *offer.ShippingRateID
		}
		if err := insertShipment(ctx, tx, &shipment); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("shipment repository: get by offer and sender %w", err)
	}

	if !offer.SaleStatus.CanTransition(models.SaleStatusShipped) {
		return nil, nil, ErrInvalidTransition
	}
	if _, err := tx.ExecContext(ctx, `UPDATE offers SET sale_status = 'shipped', updated_at = NOW() WHERE id = $1`, offer.ID); err != nil {
		return nil, nil, fmt.Errorf("shipment repository: advance sale status %w", err)
	}
	offer.SaleStatus = models.SaleStatusShipped

	return &shipment, offer, tx.Commit()
}

func insertShipment(ctx context.Context, tx *sqlx.Tx, shipment *models.Shipment) error {
	query := `
		INSERT INTO shipments (
			offer_id, sender_id, recipient_id, rate_id, carrier, service,
			cost_cents, tracking_number, tracking_url, label_url, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		shipment.OfferID, shipment.SenderID, shipment.RecipientID, shipment.RateID,
		shipment.Carrier, shipment.Service, shipment.CostCents,
		shipment.TrackingNumber, shipment.TrackingURL, shipment.LabelURL, shipment.Status,
	).Scan(&shipment.ID, &shipment.CreatedAt); err != nil {
		return fmt.Errorf("shipment repository: insert %w", err)
	}

	return nil
}
