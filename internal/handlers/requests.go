package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/services"
)

// LoginRequest represents an owner login
type LoginRequest struct {
	Password string `json:"password"`
}

// PrizeRequest describes one prize slot of a new draw
type PrizeRequest struct {
	Description string     `json:"description"`
	LotteryName string     `json:"lottery_name"`
	DrawTime    *time.Time `json:"draw_time"`
}

// DrawCreateRequest represents a request to create a draw
type DrawCreateRequest struct {
	Title          string          `json:"title"`
	TotalNumbers   int             `json:"total_numbers"`
	PricePerTicket decimal.Decimal `json:"price_per_ticket"`
	Currency       string          `json:"currency"`
	Prizes         []PrizeRequest  `json:"prizes"`
	MinPerPurchase *int            `json:"min_per_purchase"`
	MaxPerPurchase *int            `json:"max_per_purchase"`
	SalesStartAt   *time.Time      `json:"sales_start_at"`
}

// toInput converts the request into the catalog's draw input
func (req DrawCreateRequest) toInput() services.DrawInput {
	prizes := make([]models.Prize, len(req.Prizes))
	for i, p := range req.Prizes {
		prizes[i] = models.Prize{Description: p.Description, LotteryName: p.LotteryName, DrawTime: p.DrawTime}
	}
	return services.DrawInput{
		Title:          req.Title,
		TotalNumbers:   req.TotalNumbers,
		PricePerTicket: req.PricePerTicket,
		Currency:       models.Currency(req.Currency),
		Prizes:         prizes,
		MinPerPurchase: req.MinPerPurchase,
		MaxPerPurchase: req.MaxPerPurchase,
		SalesStartAt:   req.SalesStartAt,
	}
}

// DrawStatusRequest represents a request to move a draw to another status
type DrawStatusRequest struct {
	Status string `json:"status"`
}

// ClaimRequest represents a request to claim numbers in a draw
type ClaimRequest struct {
	Numbers        []int  `json:"numbers"`
	PurchaserName  string `json:"purchaser_name"`
	PurchaserPhone string `json:"purchaser_phone"`
}

// PaymentStatusRequest represents a request to change a payment status
type PaymentStatusRequest struct {
	Status string `json:"status"`
}

// VerifyRequest represents a request to check a payment receipt
type VerifyRequest struct {
	ImageRef  string `json:"image_ref"`
	PayerName string `json:"payer_name"`
}

// ResolveRequest represents a request to resolve a draw
type ResolveRequest struct {
	WinningNumbers []*int             `json:"winning_numbers"`
	Winners        []*services.Winner `json:"winners"`
}
