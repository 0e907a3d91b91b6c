package inventory

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalinventory "github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Service is the slice of the inventory service the admin endpoints use.
type Service interface {
	Create(ctx context.Context, input internalinventory.CreateInput) (*models.Inventory, error)
	Adjust(ctx context.Context, input internalinventory.AdjustInput) (*models.Inventory, error)
	Get(ctx context.Context, id uuid.UUID) (*internalinventory.Detail, error)
}

type createInventoryRequest struct {
	ProductID       string `json:"product_id" validate:"required,uuid"`
	StoreID         string `json:"store_id" validate:"required,uuid"`
	InitialQuantity int    `json:"initial_quantity" validate:"min=0"`
	MinStock        int    `json:"min_stock" validate:"min=0"`
}

type adjustInventoryRequest struct {
	Type     string `json:"type" validate:"required,oneof=ADDITION SUBTRACTION"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Note     string `json:"note" validate:"max=500"`
}

type inventoryResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	StoreID   uuid.UUID `json:"store_id"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"min_stock"`
	Low       bool      `json:"low"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type journalResponse struct {
	ID          uuid.UUID              `json:"id"`
	Delta       int                    `json:"delta"`
	Type        enums.StockJournalType `json:"type"`
	Note        string                 `json:"note,omitempty"`
	ReferenceID *uuid.UUID             `json:"reference_id,omitempty"`
	CreatedBy   string                 `json:"created_by"`
	CreatedAt   time.Time              `json:"created_at"`
}

type detailResponse struct {
	Inventory      inventoryResponse                `json:"inventory"`
	Journal        []journalResponse                `json:"journal"`
	Reconciliation internalinventory.Reconciliation `json:"reconciliation"`
}

func toInventoryResponse(inv *models.Inventory) inventoryResponse {
	return inventoryResponse{
		ID:        inv.ID,
		ProductID: inv.ProductID,
		StoreID:   inv.StoreID,
		Quantity:  inv.Quantity,
		MinStock:  inv.MinStock,
		Low:       inv.IsLow(),
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}
}

// Create opens an inventory counter for a product at a store.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload createInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inv, err := svc.Create(r.Context(), internalinventory.CreateInput{
			ProductID:       uuid.MustParse(payload.ProductID),
			StoreID:         uuid.MustParse(payload.StoreID),
			InitialQuantity: payload.InitialQuantity,
			MinStock:        payload.MinStock,
			Actor:           middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toInventoryResponse(inv))
	}
}

// Adjust books a manual ADDITION or SUBTRACTION.
func Adjust(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		inventoryID, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inv, err := svc.Adjust(r.Context(), internalinventory.AdjustInput{
			InventoryID: inventoryID,
			Type:        enums.StockJournalType(payload.Type),
			Quantity:    payload.Quantity,
			Note:        validators.SanitizeString(payload.Note, 500),
			Actor:       middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()).String(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toInventoryResponse(inv))
	}
}

// Detail returns the counter, its recent journal and the reconciliation
// against the journal sum.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		inventoryID, err := validators.ParseUUIDParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), inventoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := detailResponse{
			Inventory:      toInventoryResponse(&detail.Inventory),
			Journal:        make([]journalResponse, 0, len(detail.Journal)),
			Reconciliation: detail.Reconciliation,
		}
		for _, row := range detail.Journal {
			resp.Journal = append(resp.Journal, journalResponse{
				ID:          row.ID,
				Delta:       row.Delta,
				Type:        row.Type,
				Note:        row.Note,
				ReferenceID: row.ReferenceID,
				CreatedBy:   row.CreatedBy,
				CreatedAt:   row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}
