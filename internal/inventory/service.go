package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const recentJournalLimit = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Movement is a single stock change. Quantity is always positive; the
// journal type decides the sign.
type Movement struct {
	InventoryID uuid.UUID
	Quantity    int
	Type        enums.StockJournalType
	ReferenceID *uuid.UUID
	Actor       string
	Note        string
}

// StockRequirement is the quantity an order needs of one product.
type StockRequirement struct {
	ProductID uuid.UUID
	Quantity  int
}

// StockCheckItem reports one product of a stock check.
type StockCheckItem struct {
	ProductID  uuid.UUID `json:"product_id"`
	Required   int       `json:"required"`
	Available  int       `json:"available"`
	Sufficient bool      `json:"sufficient"`
}

// StockCheckResult is the per-item availability of a store.
type StockCheckResult struct {
	StoreID     uuid.UUID        `json:"store_id"`
	Items       []StockCheckItem `json:"items"`
	HasAllStock bool             `json:"has_all_stock"`
}

// Shortfalls returns the items the store cannot cover.
func (r StockCheckResult) Shortfalls() []StockCheckItem {
	out := make([]StockCheckItem, 0)
	for _, item := range r.Items {
		if !item.Sufficient {
			out = append(out, item)
		}
	}
	return out
}

// CreateInput describes a new inventory counter.
type CreateInput struct {
	ProductID       uuid.UUID
	StoreID         uuid.UUID
	InitialQuantity int
	MinStock        int
	Actor           string
}

// AdjustInput is a manual ADDITION or SUBTRACTION.
type AdjustInput struct {
	InventoryID uuid.UUID
	Type        enums.StockJournalType
	Quantity    int
	Note        string
	Actor       string
	ActorRole   string
}

// Reconciliation compares the cached counter with the journal balance.
type Reconciliation struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Quantity    int       `json:"quantity"`
	JournalSum  int64     `json:"journal_sum"`
	Drift       int64     `json:"drift"`
}

// Detail is an inventory with its latest movements.
type Detail struct {
	Inventory      models.Inventory      `json:"inventory"`
	Journal        []models.StockJournal `json:"journal"`
	Reconciliation Reconciliation        `json:"reconciliation"`
	Low            bool                  `json:"low"`
}

// Service owns every write to inventories and stock_journals.
type Service struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService wires the inventory service.
func NewService(repo *Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Service{repo: repo, tx: tx, outbox: outbox, logg: logg}, nil
}

// Decrement lowers the counter and writes the journal row in the caller's
// transaction. It fails with CodeInsufficientStock when stock is insufficient.
func (s *Service) Decrement(ctx context.Context, tx *gorm.DB, m Movement) (*models.StockJournal, error) {
	if m.Type.Sign() >= 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "journal type %s does not remove stock", m.Type)
	}
	if m.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.Subtract(ctx, m.InventoryID, m.Quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement inventory")
	}
	if !ok {
		inv, err := repo.FindByID(ctx, m.InventoryID)
		if err != nil {
			if isNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
			"inventory_id": inv.ID,
			"product_id":   inv.ProductID,
			"required":     m.Quantity,
			"available":    inv.Quantity,
		})
	}
	return s.journal(ctx, repo, m, -m.Quantity)
}

// Increment raises the counter and writes the journal row in the caller's
// transaction.
func (s *Service) Increment(ctx context.Context, tx *gorm.DB, m Movement) (*models.StockJournal, error) {
	if m.Type.Sign() <= 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "journal type %s does not add stock", m.Type)
	}
	if m.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)

	if err := repo.Add(ctx, m.InventoryID, m.Quantity); err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment inventory")
	}
	return s.journal(ctx, repo, m, m.Quantity)
}

func (s *Service) journal(ctx context.Context, repo *Repository, m Movement, delta int) (*models.StockJournal, error) {
	entry := &models.StockJournal{
		InventoryID: m.InventoryID,
		Delta:       delta,
		Type:        m.Type,
		Note:        m.Note,
		ReferenceID: m.ReferenceID,
		CreatedBy:   m.Actor,
	}
	if err := repo.InsertJournal(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock journal")
	}
	return entry, nil
}

// DecrementForOrder takes every item of order from its store with SALE rows.
// Items are processed in product id order so concurrent transactions lock
// inventory rows in the same sequence.
func (s *Service) DecrementForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor string) error {
	return s.applyForOrder(ctx, tx, order, actor, enums.StockJournalSale)
}

// RestockForOrder returns exactly what DecrementForOrder took, with RETURN rows.
func (s *Service) RestockForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor string) error {
	return s.applyForOrder(ctx, tx, order, actor, enums.StockJournalReturn)
}

func (s *Service) applyForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor string, typ enums.StockJournalType) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	items := order.Items
	if len(items) == 0 {
		if err := tx.WithContext(ctx).Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
	}
	sorted := make([]models.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	repo := s.repo.WithTx(tx)
	orderID := order.ID
	note := fmt.Sprintf("order %s", order.OrderNumber)
	for _, item := range sorted {
		inv, err := repo.FindByProductAndStore(ctx, item.ProductID, order.StoreID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
					"product_id": item.ProductID,
					"required":   item.Quantity,
					"available":  0,
				})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
		}

		m := Movement{
			InventoryID: inv.ID,
			Quantity:    item.Quantity,
			Type:        typ,
			ReferenceID: &orderID,
			Actor:       actor,
			Note:        note,
		}
		if typ.Sign() < 0 {
			_, err = s.Decrement(ctx, tx, m)
		} else {
			_, err = s.Increment(ctx, tx, m)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// StockCheck reports, per product, whether storeID can cover items.
// Duplicate products are summed.
func (s *Service) StockCheck(ctx context.Context, storeID uuid.UUID, items []StockRequirement) (StockCheckResult, error) {
	result := StockCheckResult{StoreID: storeID, Items: make([]StockCheckItem, 0, len(items)), HasAllStock: true}

	required := make(map[uuid.UUID]int, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, seen := required[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		required[item.ProductID] += item.Quantity
	}

	rows, err := s.repo.ListForStore(ctx, storeID, order)
	if err != nil {
		return StockCheckResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventories")
	}
	available := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		available[row.ProductID] = row.Quantity
	}

	for _, productID := range order {
		item := StockCheckItem{
			ProductID: productID,
			Required:  required[productID],
			Available: available[productID],
		}
		item.Sufficient = item.Available >= item.Required
		if !item.Sufficient {
			result.HasAllStock = false
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// Create opens a counter for a product at a store. A positive initial
// quantity is booked as an ADDITION so the journal explains the counter.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Inventory, error) {
	if input.ProductID == uuid.Nil || input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and store are required")
	}
	if input.InitialQuantity < 0 || input.MinStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantities must not be negative")
	}

	var created *models.Inventory
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Model(&models.Product{}).Where("id = ?", input.ProductID).Count(&count).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err := tx.WithContext(ctx).Model(&models.Store{}).Where("id = ?", input.StoreID).Count(&count).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}

		repo := s.repo.WithTx(tx)
		inv := &models.Inventory{ProductID: input.ProductID, StoreID: input.StoreID, MinStock: input.MinStock}
		if err := repo.Create(ctx, inv); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "inventory already exists for product at store")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory")
		}
		if input.InitialQuantity > 0 {
			if _, err := s.Increment(ctx, tx, Movement{
				InventoryID: inv.ID,
				Quantity:    input.InitialQuantity,
				Type:        enums.StockJournalAddition,
				Actor:       input.Actor,
				Note:        "initial stock",
			}); err != nil {
				return err
			}
			inv.Quantity = input.InitialQuantity
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Adjust applies a manual movement in its own transaction and emits
// stock_adjusted.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (*models.Inventory, error) {
	if input.Type != enums.StockJournalAddition && input.Type != enums.StockJournalSubtraction {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment type must be ADDITION or SUBTRACTION")
	}

	var updated *models.Inventory
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		m := Movement{
			InventoryID: input.InventoryID,
			Quantity:    input.Quantity,
			Type:        input.Type,
			Actor:       input.Actor,
			Note:        input.Note,
		}
		var err error
		if input.Type.Sign() < 0 {
			_, err = s.Decrement(ctx, tx, m)
		} else {
			_, err = s.Increment(ctx, tx, m)
		}
		if err != nil {
			return err
		}

		inv, err := s.repo.WithTx(tx).FindByID(ctx, input.InventoryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory")
		}
		updated = inv

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   inv.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor, Role: input.ActorRole},
			Data: payloads.StockAdjustedEvent{
				InventoryID: inv.ID,
				ProductID:   inv.ProductID,
				StoreID:     inv.StoreID,
				Delta:       input.Type.Sign() * input.Quantity,
				Type:        input.Type,
				Quantity:    inv.Quantity,
				BelowMin:    inv.IsLow(),
			},
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil && updated.IsLow() {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"inventory_id": updated.ID,
			"quantity":     updated.Quantity,
			"min_stock":    updated.MinStock,
		})
		s.logg.Warn(logCtx, "inventory at or below minimum stock")
	}
	return updated, nil
}

// Get returns the counter with its newest journal rows and ledger drift.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	journal, err := s.repo.RecentJournal(ctx, id, recentJournalLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock journal")
	}
	rec, err := s.reconcile(ctx, inv)
	if err != nil {
		return nil, err
	}
	return &Detail{Inventory: *inv, Journal: journal, Reconciliation: rec, Low: inv.IsLow()}, nil
}

// Reconcile reports the difference between the counter and SUM(delta).
// Zero drift is the healthy state.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (Reconciliation, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return Reconciliation{}, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
		}
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return s.reconcile(ctx, inv)
}

func (s *Service) reconcile(ctx context.Context, inv *models.Inventory) (Reconciliation, error) {
	sum, err := s.repo.JournalSum(ctx, inv.ID)
	if err != nil {
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum stock journal")
	}
	rec := Reconciliation{
		InventoryID: inv.ID,
		Quantity:    inv.Quantity,
		JournalSum:  sum,
		Drift:       int64(inv.Quantity) - sum,
	}
	if rec.Drift != 0 && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"inventory_id": inv.ID,
			"drift":        rec.Drift,
		})
		s.logg.Warn(logCtx, "inventory counter drifted from journal")
	}
	return rec, nil
}
