package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DrawStatus is the lifecycle state of a draw
type DrawStatus string

const (
	DrawScheduled   DrawStatus = "scheduled"
	DrawActive      DrawStatus = "active"
	DrawPendingDraw DrawStatus = "pending_draw"
	DrawCompleted   DrawStatus = "completed"
	DrawCancelled   DrawStatus = "cancelled"
)

var drawStatusOrder = map[DrawStatus]int{
	DrawScheduled:   0,
	DrawActive:      1,
	DrawPendingDraw: 2,
	DrawCompleted:   3,
}

// Valid reports whether s is a known status
func (s DrawStatus) Valid() bool {
	_, ok := drawStatusOrder[s]
	return ok || s == DrawCancelled
}

// Terminal reports whether no further transition is possible
func (s DrawStatus) Terminal() bool {
	return s == DrawCompleted || s == DrawCancelled
}

// CanAdvanceTo reports whether a draw may move from s to next.
// Status only moves forward; cancelled is reachable from any non-completed state.
func (s DrawStatus) CanAdvanceTo(next DrawStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == DrawCancelled {
		return true
	}
	return drawStatusOrder[next] > drawStatusOrder[s]
}

// Currency of a draw's ticket price
type Currency string

const (
	CurrencyUSD   Currency = "USD"
	CurrencyLocal Currency = "local"
)

// Valid reports whether c is a supported currency
func (c Currency) Valid() bool {
	return c == CurrencyUSD || c == CurrencyLocal
}

// Prize is one winner slot of a draw
type Prize struct {
	Description string     `json:"description"`
	LotteryName string     `json:"lottery_name,omitempty"`
	DrawTime    *time.Time `json:"draw_time,omitempty"`
}

// Draw is one numbered-ticket raffle
type Draw struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	TotalNumbers   int             `json:"total_numbers"`
	PricePerTicket decimal.Decimal `json:"price_per_ticket"`
	Currency       Currency        `json:"currency"`
	Prizes         []Prize         `json:"prizes"`
	MinPerPurchase *int            `json:"min_per_purchase,omitempty"`
	MaxPerPurchase *int            `json:"max_per_purchase,omitempty"`
	Status         DrawStatus      `json:"status"`
	CreatorID      string          `json:"creator_id"`
	SalesStartAt   *time.Time      `json:"sales_start_at,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EarliestDrawTime returns the earliest scheduled prize draw time, if any
func (d Draw) EarliestDrawTime() *time.Time {
	var earliest *time.Time
	for i := range d.Prizes {
		dt := d.Prizes[i].DrawTime
		if dt == nil {
			continue
		}
		if earliest == nil || dt.Before(*earliest) {
			earliest = dt
		}
	}
	return earliest
}

// PaymentStatus is the payment state of a participation
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentRejected  PaymentStatus = "rejected"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentConfirmed || s == PaymentRejected
}

// CanTransitionTo reports whether an operator may move a participation from s to next
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch {
	case s == PaymentPending && next == PaymentConfirmed:
		return true
	case s == PaymentPending && next == PaymentRejected:
		return true
	case s == PaymentConfirmed && next == PaymentRejected:
		return true
	}
	return false
}

// Participation is one purchaser's claim over a set of numbers within a draw
type Participation struct {
	ID                string        `json:"id"`
	DrawID            string        `json:"draw_id"`
	Numbers           []int         `json:"numbers"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	PurchaserID       string        `json:"purchaser_id"`
	PurchaserName     string        `json:"purchaser_name"`
	PurchaserPhone    string        `json:"purchaser_phone"`
	PurchaseTimestamp time.Time     `json:"purchase_timestamp"`
	Version           int64         `json:"version"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Holds reports whether the participation claims number n
func (p Participation) Holds(n int) bool {
	for _, num := range p.Numbers {
		if num == n {
			return true
		}
	}
	return false
}

// DrawResult is the write-once outcome of a resolved draw.
// Every slice is aligned with the draw's prizes.
type DrawResult struct {
	DrawID                 string    `json:"draw_id"`
	WinningNumbers         []*int    `json:"winning_numbers"`
	WinnerNames            []*string `json:"winner_names"`
	WinnerPhones           []*string `json:"winner_phones"`
	WinnerParticipationIDs []*string `json:"winner_participation_ids"`
	ResolvedBy             string    `json:"resolved_by"`
	ResolvedAt             time.Time `json:"resolved_at"`
}

// AuditAction is the closed set of audited operator actions
type AuditAction string

const (
	AuditDrawCreated          AuditAction = "DRAW_CREATED"
	AuditDrawStatusChanged    AuditAction = "DRAW_STATUS_CHANGED"
	AuditPaymentConfirmed     AuditAction = "PAYMENT_CONFIRMED"
	AuditPaymentRejected      AuditAction = "PAYMENT_REJECTED"
	AuditParticipationDeleted AuditAction = "PARTICIPATION_DELETED"
	AuditWinnerRegistered     AuditAction = "WINNER_REGISTERED"
	AuditReceiptVerified      AuditAction = "RECEIPT_VERIFIED"
)

// Valid reports whether a is one of the known audit actions
func (a AuditAction) Valid() bool {
	switch a {
	case AuditDrawCreated, AuditDrawStatusChanged, AuditPaymentConfirmed, AuditPaymentRejected,
		AuditParticipationDeleted, AuditWinnerRegistered, AuditReceiptVerified:
		return true
	}
	return false
}

// AuditEvent is one append-only audit record
type AuditEvent struct {
	ID         int64           `json:"id"`
	ActorID    string          `json:"actor_id"`
	ActionType AuditAction     `json:"action_type"`
	TargetRef  string          `json:"target_ref"`
	Details    json.RawMessage `json:"details,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// AuditFilter narrows an audit listing
type AuditFilter struct {
	TargetRef  string
	ActionType AuditAction
	Limit      int
}

// DrawStats summarizes the ledger of one draw
type DrawStats struct {
	DrawID           string          `json:"draw_id"`
	TotalNumbers     int             `json:"total_numbers"`
	Pending          int             `json:"pending"`
	Confirmed        int             `json:"confirmed"`
	Rejected         int             `json:"rejected"`
	UnavailableCount int             `json:"unavailable_count"`
	ConfirmedNumbers int             `json:"confirmed_numbers"`
	ConfirmedRevenue decimal.Decimal `json:"confirmed_revenue"`
	Currency         Currency        `json:"currency"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	DrawID  string      `json:"draw_id,omitempty"`
	Payload interface{} `json:"payload"`
}
