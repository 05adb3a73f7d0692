package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
)

type discountRequest struct {
	Name                string              `json:"name" validate:"required,max=200"`
	Description         string              `json:"description" validate:"max=2000"`
	Kind                string              `json:"kind" validate:"required,oneof=percentage fixed_amount bottle_return"`
	Value               decimal.Decimal     `json:"value"`
	MinPurchaseAmount   decimal.NullDecimal `json:"min_purchase_amount"`
	MaxDiscountAmount   decimal.NullDecimal `json:"max_discount_amount"`
	StartDate           *Date               `json:"start_date"`
	EndDate             *Date               `json:"end_date"`
	UsageLimit          *int                `json:"usage_limit" validate:"omitempty,gt=0"`
	CustomerUsageLimit  *int                `json:"customer_usage_limit" validate:"omitempty,gt=0"`
	AppliesTo           string              `json:"applies_to"`
	ProductTypes        []string            `json:"product_types" validate:"dive,required"`
	CategoryIDs         []string            `json:"category_ids" validate:"dive,required"`
	CustomerTiers       []string            `json:"customer_tiers" validate:"dive,required"`
	BottleReturnCount   int                 `json:"bottle_return_count" validate:"gte=0"`
	Active              *bool               `json:"active"`
	AllowPartialPayment bool                `json:"allow_partial_payment"`
}

// toDomain converts the request. Omitted active defaults to true.
func (req *discountRequest) toDomain(id string) discount.Discount {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return discount.Discount{
		ID:                  id,
		Name:                req.Name,
		Description:         req.Description,
		Kind:                discount.Kind(req.Kind),
		Value:               req.Value,
		MinPurchase:         req.MinPurchaseAmount,
		MaxDiscount:         req.MaxDiscountAmount,
		StartDate:           datePtr(req.StartDate),
		EndDate:             datePtr(req.EndDate),
		UsageLimit:          req.UsageLimit,
		CustomerUsageLimit:  req.CustomerUsageLimit,
		AppliesTo:           discount.Target(req.AppliesTo),
		ProductTypes:        req.ProductTypes,
		CategoryIDs:         req.CategoryIDs,
		CustomerTiers:       req.CustomerTiers,
		BottleReturnCount:   req.BottleReturnCount,
		Active:              active,
		AllowPartialPayment: req.AllowPartialPayment,
	}
}

type discountResponse struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	Kind                string              `json:"kind"`
	Value               decimal.Decimal     `json:"value"`
	MinPurchaseAmount   decimal.NullDecimal `json:"min_purchase_amount"`
	MaxDiscountAmount   decimal.NullDecimal `json:"max_discount_amount"`
	StartDate           *Date               `json:"start_date"`
	EndDate             *Date               `json:"end_date"`
	UsageLimit          *int                `json:"usage_limit"`
	CustomerUsageLimit  *int                `json:"customer_usage_limit"`
	AppliesTo           string              `json:"applies_to"`
	ProductTypes        []string            `json:"product_types"`
	CategoryIDs         []string            `json:"category_ids"`
	CustomerTiers       []string            `json:"customer_tiers"`
	BottleReturnCount   int                 `json:"bottle_return_count"`
	Active              bool                `json:"active"`
	AllowPartialPayment bool                `json:"allow_partial_payment"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func toDiscountResponse(d *discount.Discount) discountResponse {
	return discountResponse{
		ID:                  d.ID,
		Name:                d.Name,
		Description:         d.Description,
		Kind:                string(d.Kind),
		Value:               d.Value,
		MinPurchaseAmount:   d.MinPurchase,
		MaxDiscountAmount:   d.MaxDiscount,
		StartDate:           toDate(d.StartDate),
		EndDate:             toDate(d.EndDate),
		UsageLimit:          d.UsageLimit,
		CustomerUsageLimit:  d.CustomerUsageLimit,
		AppliesTo:           string(d.AppliesTo),
		ProductTypes:        orEmpty(d.ProductTypes),
		CategoryIDs:         orEmpty(d.CategoryIDs),
		CustomerTiers:       orEmpty(d.CustomerTiers),
		BottleReturnCount:   d.BottleReturnCount,
		Active:              d.Active,
		AllowPartialPayment: d.AllowPartialPayment,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type lineRequest struct {
	ProductType string `json:"product_type"`
	CategoryID  string `json:"category_id"`
}

func toLines(in []lineRequest) []discount.Line {
	if len(in) == 0 {
		return nil
	}
	out := make([]discount.Line, len(in))
	for i, l := range in {
		out[i] = discount.Line{ProductType: l.ProductType, CategoryID: l.CategoryID}
	}
	return out
}

type evaluateRequest struct {
	CustomerID    string           `json:"customer_id" validate:"max=200"`
	OrderAmount   *decimal.Decimal `json:"order_amount" validate:"required"`
	PaymentStatus string           `json:"payment_status" validate:"omitempty,oneof=complete partial"`
	CustomerTier  string           `json:"customer_tier"`
	Lines         []lineRequest    `json:"lines" validate:"dive"`
}

type evaluateResponse struct {
	DiscountID string   `json:"discount_id"`
	Eligible   bool     `json:"eligible"`
	Reasons    []string `json:"reasons"`
}

type calculateRequest struct {
	OrderAmount *decimal.Decimal `json:"order_amount" validate:"required"`
}

type calculateResponse struct {
	DiscountID     string          `json:"discount_id"`
	OrderAmount    decimal.Decimal `json:"order_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

type applyRequest struct {
	DiscountID    string           `json:"discount_id" validate:"required"`
	CustomerID    string           `json:"customer_id" validate:"required,max=200"`
	OrderAmount   *decimal.Decimal `json:"order_amount" validate:"required"`
	PaymentStatus string           `json:"payment_status" validate:"omitempty,oneof=complete partial"`
	CustomerTier  string           `json:"customer_tier"`
	Lines         []lineRequest    `json:"lines" validate:"dive"`
}

type applyResponse struct {
	ApplicationID  string          `json:"application_id"`
	OrderID        string          `json:"order_id"`
	DiscountID     string          `json:"discount_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

type applicationResponse struct {
	ID                string              `json:"id"`
	DiscountID        string              `json:"discount_id"`
	CustomerID        string              `json:"customer_id"`
	Kind              string              `json:"kind"`
	OriginalAmount    decimal.Decimal     `json:"original_amount"`
	AmountApplied     decimal.Decimal     `json:"amount_applied"`
	FinalAmount       decimal.Decimal     `json:"final_amount"`
	PercentageApplied decimal.NullDecimal `json:"percentage_applied"`
	AppliedAt         time.Time           `json:"applied_at"`
}

type applicationsResponse struct {
	OrderID      string                `json:"order_id"`
	Applications []applicationResponse `json:"applications"`
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
