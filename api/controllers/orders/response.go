package orders

import (
	"time"

	"github.com/google/uuid"

	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type orderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Quantity     int       `json:"quantity"`
	UnitPrice    int64     `json:"unit_price"`
	UnitDiscount int64     `json:"unit_discount"`
	Subtotal     int64     `json:"subtotal"`
}

type orderVoucherResponse struct {
	VoucherID      uuid.UUID `json:"voucher_id"`
	Code           string    `json:"code"`
	DiscountAmount int64     `json:"discount_amount"`
}

type orderResponse struct {
	ID                 uuid.UUID              `json:"id"`
	OrderNumber        string                 `json:"order_number"`
	UserID             uuid.UUID              `json:"user_id"`
	StoreID            uuid.UUID              `json:"store_id"`
	ShippingMethodID   uuid.UUID              `json:"shipping_method_id"`
	ShippingAddress    types.AddressSnapshot  `json:"shipping_address"`
	Status             enums.OrderStatus      `json:"status"`
	PaymentMethod      enums.PaymentMethod    `json:"payment_method"`
	PaymentStatus      enums.PaymentStatus    `json:"payment_status"`
	SubtotalAmount     int64                  `json:"subtotal_amount"`
	ShippingCost       int64                  `json:"shipping_cost"`
	DiscountAmount     int64                  `json:"discount_amount"`
	TotalAmount        int64                  `json:"total_amount"`
	ShippingSource     enums.ShippingSource   `json:"shipping_source"`
	Notes              *string                `json:"notes,omitempty"`
	TrackingNumber     *string                `json:"tracking_number,omitempty"`
	CancelReason       *string                `json:"cancel_reason,omitempty"`
	ExpiresAt          *time.Time             `json:"expires_at,omitempty"`
	StatusHistory      types.StatusHistory    `json:"status_history"`
	LastStatusChangeAt time.Time              `json:"last_status_change_at"`
	LastChangedBy      string                 `json:"last_changed_by"`
	Items              []orderItemResponse    `json:"items,omitempty"`
	Vouchers           []orderVoucherResponse `json:"vouchers,omitempty"`
	PaymentProofs      []proofResponse        `json:"payment_proofs,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type proofResponse struct {
	ID            uuid.UUID                `json:"id"`
	OrderID       uuid.UUID                `json:"order_id"`
	FileReference string                   `json:"file_reference"`
	ContentType   string                   `json:"content_type"`
	SizeBytes     int64                    `json:"size_bytes"`
	Status        enums.PaymentProofStatus `json:"status"`
	UploadedBy    uuid.UUID                `json:"uploaded_by"`
	VerifiedBy    *uuid.UUID               `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time               `json:"verified_at,omitempty"`
	Notes         *string                  `json:"notes,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

type verifyResponse struct {
	Order orderResponse `json:"order"`
	Proof proofResponse `json:"proof"`
}

func toOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		UserID:             order.UserID,
		StoreID:            order.StoreID,
		ShippingMethodID:   order.ShippingMethodID,
		ShippingAddress:    order.ShippingAddress,
		Status:             order.Status,
		PaymentMethod:      order.PaymentMethod,
		PaymentStatus:      order.PaymentStatus,
		SubtotalAmount:     order.SubtotalAmount,
		ShippingCost:       order.ShippingCost,
		DiscountAmount:     order.DiscountAmount,
		TotalAmount:        order.TotalAmount,
		ShippingSource:     order.ShippingSource,
		Notes:              order.Notes,
		TrackingNumber:     order.TrackingNumber,
		CancelReason:       order.CancelReason,
		ExpiresAt:          order.ExpiresAt,
		StatusHistory:      order.StatusHistory,
		LastStatusChangeAt: order.LastStatusChangeAt,
		LastChangedBy:      order.LastChangedBy,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			UnitDiscount: item.UnitDiscount,
			Subtotal:     item.Subtotal,
		})
	}
	for _, v := range order.Vouchers {
		resp.Vouchers = append(resp.Vouchers, orderVoucherResponse{
			VoucherID:      v.VoucherID,
			Code:           v.VoucherCode,
			DiscountAmount: v.DiscountAmount,
		})
	}
	for i := range order.Proofs {
		resp.PaymentProofs = append(resp.PaymentProofs, toProofResponse(&order.Proofs[i]))
	}
	return resp
}

func toOrderListResponse(result *internalorders.ListResult) orderListResponse {
	out := orderListResponse{Orders: make([]orderResponse, 0, len(result.Orders)), NextCursor: result.NextCursor}
	for i := range result.Orders {
		out.Orders = append(out.Orders, toOrderResponse(&result.Orders[i]))
	}
	return out
}

func toProofResponse(proof *models.PaymentProof) proofResponse {
	return proofResponse{
		ID:            proof.ID,
		OrderID:       proof.OrderID,
		FileReference: proof.FileReference,
		ContentType:   proof.ContentType,
		SizeBytes:     proof.SizeBytes,
		Status:        proof.Status,
		UploadedBy:    proof.UploadedBy,
		VerifiedBy:    proof.VerifiedBy,
		VerifiedAt:    proof.VerifiedAt,
		Notes:         proof.Notes,
		CreatedAt:     proof.CreatedAt,
	}
}
