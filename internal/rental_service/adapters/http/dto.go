package http

import (
	"time"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// ListNumbersQuery holds the query parameters of GET /v1/numbers.
type ListNumbersQuery struct {
	Status string `validate:"omitempty,oneof=free reserved code_sent succeeded failed crashed"`
}

// NumberResponse is the public view of a number. The relayed code is never exposed.
type NumberResponse struct {
	Phone           string     `json:"phone"`
	SellerID        int64      `json:"seller_id"`
	BuyerID         *int64     `json:"buyer_id,omitempty"`
	Status          string     `json:"status"`
	RegisteredAt    time.Time  `json:"registered_at"`
	StatusChangedAt time.Time  `json:"status_changed_at"`
	SucceededAt     *time.Time `json:"succeeded_at,omitempty"`
	FailedAt        *time.Time `json:"failed_at,omitempty"`
	CrashedAt       *time.Time `json:"crashed_at,omitempty"`
}

type ListNumbersResponse struct {
	Numbers []NumberResponse `json:"numbers"`
	Total   int              `json:"total"`
}

func toNumberResponse(n domain.Number) NumberResponse {
	resp := NumberResponse{
		Phone:           n.Phone,
		SellerID:        int64(n.SellerID),
		Status:          n.Status.String(),
		RegisteredAt:    n.RegisteredAt,
		StatusChangedAt: n.StatusChangedAt,
		SucceededAt:     optionalTime(n.SucceededAt),
		FailedAt:        optionalTime(n.FailedAt),
		CrashedAt:       optionalTime(n.CrashedAt),
	}
	if n.HasBuyer() {
		buyer := int64(n.BuyerID)
		resp.BuyerID = &buyer
	}
	return resp
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
