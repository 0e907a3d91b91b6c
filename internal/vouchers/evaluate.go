package vouchers

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var (
	ErrVoucherInactive   = errors.New("voucher is not active")
	ErrVoucherNotStarted = errors.New("voucher is not valid yet")
	ErrVoucherExpired    = errors.New("voucher has expired")
	ErrUsageExhausted    = errors.New("voucher usage limit reached")
	ErrUserNotEligible   = errors.New("voucher is not available for this user")
	ErrNoEligibleItems   = errors.New("no cart item is eligible for this voucher")
	ErrMinPurchaseNotMet = errors.New("minimum purchase not met")
	ErrInvalidValue      = errors.New("voucher value is invalid")
	ErrDuplicateCode     = errors.New("voucher code applied more than once")
	ErrDuplicateType     = errors.New("only one voucher per type can be applied")
)

var hundred = decimal.NewFromInt(100)

// LineItem is the priced cart line a voucher is evaluated against.
type LineItem struct {
	ProductID    uuid.UUID
	Quantity     int
	UnitPrice    int64
	UnitDiscount int64
}

// Subtotal is the line total after the product's own discount.
func (l LineItem) Subtotal() int64 {
	return (l.UnitPrice - l.UnitDiscount) * int64(l.Quantity)
}

// EvaluationInput is everything Evaluate needs besides the voucher.
type EvaluationInput struct {
	UserID       uuid.UUID
	Items        []LineItem
	ShippingCost int64
	Now          time.Time
}

// ItemsSubtotal sums every line.
func (in EvaluationInput) ItemsSubtotal() int64 {
	var total int64
	for _, item := range in.Items {
		total += item.Subtotal()
	}
	return total
}

// Evaluation is the discount one voucher grants.
type Evaluation struct {
	VoucherID uuid.UUID         `json:"voucher_id"`
	Code      string            `json:"code"`
	Type      enums.VoucherType `json:"type"`
	Base      int64             `json:"base"`
	Discount  int64             `json:"discount"`
}

// Result is the combined outcome of several vouchers.
type Result struct {
	Applied       []Evaluation `json:"applied"`
	TotalDiscount int64        `json:"total_discount"`
}

// Evaluate computes the discount v grants for in. It has no side effects;
// usage is only counted when the order commits.
func Evaluate(v models.Voucher, in EvaluationInput) (Evaluation, error) {
	eval := Evaluation{VoucherID: v.ID, Code: v.Code, Type: v.Type}

	if !v.IsActive {
		return eval, ErrVoucherInactive
	}
	if in.Now.Before(v.StartsAt) {
		return eval, ErrVoucherNotStarted
	}
	if !in.Now.Before(v.EndsAt) {
		return eval, ErrVoucherExpired
	}
	if v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit {
		return eval, ErrUsageExhausted
	}
	if len(v.EligibleUserIDs) > 0 && !contains(v.EligibleUserIDs, in.UserID.String()) {
		return eval, ErrUserNotEligible
	}
	if !v.Value.IsPositive() {
		return eval, ErrInvalidValue
	}

	subtotal := in.ItemsSubtotal()
	var base, minBase int64
	switch v.Type {
	case enums.VoucherTypeProduct:
		for _, item := range in.Items {
			if len(v.EligibleProductIDs) == 0 || contains(v.EligibleProductIDs, item.ProductID.String()) {
				base += item.Subtotal()
			}
		}
		if base == 0 {
			return eval, ErrNoEligibleItems
		}
		minBase = base
	case enums.VoucherTypeShipping:
		base = in.ShippingCost
		minBase = subtotal
	case enums.VoucherTypeReferral:
		base = subtotal
		minBase = subtotal
	default:
		return eval, fmt.Errorf("unknown voucher type %q", v.Type)
	}
	eval.Base = base

	if minBase < v.MinPurchase {
		return eval, ErrMinPurchaseNotMet
	}

	var discount int64
	switch v.ValueType {
	case enums.VoucherValuePercentage:
		discount = decimal.NewFromInt(base).Mul(v.Value).Div(hundred).Floor().IntPart()
		if v.MaxDiscount != nil && discount > *v.MaxDiscount {
			discount = *v.MaxDiscount
		}
	case enums.VoucherValueFixed:
		discount = v.Value.Floor().IntPart()
	default:
		return eval, fmt.Errorf("unknown voucher value type %q", v.ValueType)
	}
	if discount > base {
		discount = base
	}
	if discount < 0 {
		discount = 0
	}
	eval.Discount = discount
	return eval, nil
}

// EvaluateAll applies vouchers together: one per type, no repeated codes,
// and a combined discount no larger than items plus shipping.
func EvaluateAll(vouchers []models.Voucher, in EvaluationInput) (Result, error) {
	result := Result{Applied: make([]Evaluation, 0, len(vouchers))}
	seenCodes := make(map[string]struct{}, len(vouchers))
	seenTypes := make(map[enums.VoucherType]struct{}, len(vouchers))

	for _, v := range vouchers {
		code := NormalizeCode(v.Code)
		if _, dup := seenCodes[code]; dup {
			return Result{}, &VoucherError{Code: v.Code, Err: ErrDuplicateCode}
		}
		seenCodes[code] = struct{}{}
		if _, dup := seenTypes[v.Type]; dup {
			return Result{}, &VoucherError{Code: v.Code, Err: ErrDuplicateType}
		}
		seenTypes[v.Type] = struct{}{}

		eval, err := Evaluate(v, in)
		if err != nil {
			return Result{}, &VoucherError{Code: v.Code, Err: err}
		}
		result.Applied = append(result.Applied, eval)
	}

	ceiling := in.ItemsSubtotal() + in.ShippingCost
	remaining := ceiling
	for i := range result.Applied {
		if result.Applied[i].Discount > remaining {
			result.Applied[i].Discount = remaining
		}
		remaining -= result.Applied[i].Discount
		result.TotalDiscount += result.Applied[i].Discount
	}
	return result, nil
}

// VoucherError ties an evaluation failure to the code that caused it.
type VoucherError struct {
	Code string
	Err  error
}

func (e *VoucherError) Error() string {
	return fmt.Sprintf("voucher %s: %v", e.Code, e.Err)
}

func (e *VoucherError) Unwrap() error {
	return e.Err
}

func contains(list []string, value string) bool {
	for _, candidate := range list {
		if candidate == value {
			return true
		}
	}
	return false
}
