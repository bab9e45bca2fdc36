package models

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus описывает состояние спора по сделке.
type DisputeStatus string

// Статусы споров
const (
	DisputeStatusOpen             DisputeStatus = "open"
	DisputeStatusResolvedRefunded DisputeStatus = "resolved_refunded"
	DisputeStatusResolvedRejected DisputeStatus = "resolved_rejected"
)

// Valid проверяет, что значение входит в закрытый список статусов.
func (s DisputeStatus) Valid() bool {
	switch s {
	case DisputeStatusOpen, DisputeStatusResolvedRefunded, DisputeStatusResolvedRejected:
		return true
	}
	return false
}

// Resolved сообщает, закрыт ли спор.
func (s DisputeStatus) Resolved() bool {
	return s == DisputeStatusResolvedRefunded || s == DisputeStatusResolvedRejected
}

// Dispute описывает спор по сделке. На сделку допускается не больше
// одного открытого спора; deal_id указывает на оффер.
type Dispute struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	DealType       string        `db:"deal_type" json:"deal_type"`
	DealID         uuid.UUID     `db:"deal_id" json:"deal_id"`
	OpenedBy       uuid.UUID     `db:"opened_by" json:"opened_by"`
	OpenedByRole   string        `db:"opened_by_role" json:"opened_by_role"`
	ReasonCode     string        `db:"reason_code" json:"reason_code"`
	Description    *string       `db:"description" json:"description,omitempty"`
	Status         DisputeStatus `db:"status" json:"status"`
	ResolutionNote *string       `db:"resolution_note" json:"resolution_note,omitempty"`
	ResolvedBy     *uuid.UUID    `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	ResolvedAt     *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
}
