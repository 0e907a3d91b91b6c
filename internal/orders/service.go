package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	maxOrderNumberAttempts = 5
	defaultPaymentExpiry   = 24 * time.Hour
)

// Service defines the customer and admin order operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, query ListQuery) (*ListResult, error)
	ListAll(ctx context.Context, query ListQuery) (*ListResult, error)
	Ship(ctx context.Context, input ShipInput) (*models.Order, error)
	Confirm(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	StockCheck(ctx context.Context, orderID uuid.UUID) (inventory.StockCheckResult, error)
}

// Options carries the tunables of the order service.
type Options struct {
	PaymentExpiry time.Duration
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	lifecycle *Lifecycle
	inventory InventoryLedger
	shipping  ShippingEstimator
	vouchers  VoucherStore
	logg      *logger.Logger
	opts      Options
	now       func() time.Time
	numbers   func(time.Time) (string, error)
}

// NewService builds the order service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outbox outboxPublisher,
	lifecycle *Lifecycle,
	inventory InventoryLedger,
	shipping ShippingEstimator,
	vouchers VoucherStore,
	logg *logger.Logger,
	opts Options,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if shipping == nil {
		return nil, fmt.Errorf("shipping estimator required")
	}
	if vouchers == nil {
		return nil, fmt.Errorf("voucher store required")
	}
	if opts.PaymentExpiry <= 0 {
		opts.PaymentExpiry = defaultPaymentExpiry
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		lifecycle: lifecycle,
		inventory: inventory,
		shipping:  shipping,
		vouchers:  vouchers,
		logg:      logg,
		opts:      opts,
		now:       time.Now,
		numbers:   NewOrderNumber,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	codes, err := validateCreate(input)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	address, err := s.repo.FindAddress(ctx, input.AddressID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if address == nil || address.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}

	method, err := s.repo.FindShippingMethod(ctx, input.ShippingMethodID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping method")
	}
	if method == nil || !method.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping method not available")
	}

	cart, err := s.repo.ListCartItems(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	lines, requirements, weight, err := priceCart(cart)
	if err != nil {
		return nil, err
	}

	store, err := s.pickStore(ctx, requirements, address.Location)
	if err != nil {
		return nil, err
	}

	estimate := s.shipping.Estimate(ctx, shipping.EstimateRequest{
		Origin:            store.Location,
		Destination:       address.Location,
		OriginRegion:      store.RegionCode,
		DestinationRegion: address.RegionCode,
		WeightGrams:       weight,
		CourierCode:       method.CourierCode,
		ServiceCode:       method.ServiceCode,
	})

	evalInput := vouchers.EvaluationInput{UserID: input.UserID, Items: lines, ShippingCost: estimate.Cost, Now: now}
	applied, err := s.evaluateVouchers(ctx, codes, evalInput)
	if err != nil {
		return nil, err
	}

	subtotal := evalInput.ItemsSubtotal()
	order := &models.Order{
		UserID:             input.UserID,
		StoreID:            store.StoreID,
		ShippingMethodID:   method.ID,
		ShippingAddress:    address.Snapshot(),
		Status:             enums.OrderStatusWaitingPayment,
		PaymentMethod:      input.PaymentMethod,
		PaymentStatus:      enums.PaymentStatusPending,
		SubtotalAmount:     subtotal,
		ShippingCost:       estimate.Cost,
		DiscountAmount:     applied.TotalDiscount,
		TotalAmount:        subtotal + estimate.Cost - applied.TotalDiscount,
		ShippingSource:     estimate.Source,
		StatusHistory:      types.StatusHistory{}.Append(enums.OrderStatusWaitingPayment, now, input.UserID.String()),
		LastStatusChangeAt: now,
		LastChangedBy:      input.UserID.String(),
		Items:              buildItems(cart),
		Vouchers:           buildVouchers(applied),
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		order.Notes = &notes
	}
	if input.PaymentMethod.SettlesViaWebhook() {
		expires := now.Add(s.opts.PaymentExpiry)
		order.ExpiresAt = &expires
	}

	if err := s.persist(ctx, order, applied); err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrder(ctx, order.ID.String(), order.OrderNumber)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"store_id":        order.StoreID,
			"total_amount":    order.TotalAmount,
			"shipping_source": order.ShippingSource,
		})
		s.logg.Info(logCtx, "order created")
	}
	return order, nil
}

func validateCreate(input CreateInput) ([]string, error) {
	if input.UserID == uuid.Nil || input.AddressID == uuid.Nil || input.ShippingMethodID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user, address and shipping method are required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	if utf8.RuneCountInString(input.Notes) > maxNotesLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "notes must be at most %d characters", maxNotesLength)
	}
	if len(input.VoucherCodes) > maxVoucherCodes {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d vouchers can be applied", maxVoucherCodes)
	}

	codes := make([]string, 0, len(input.VoucherCodes))
	seen := make(map[string]struct{}, len(input.VoucherCodes))
	for _, raw := range input.VoucherCodes {
		code := vouchers.NormalizeCode(raw)
		if code == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code must not be empty")
		}
		if _, dup := seen[code]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "voucher %s applied more than once", code)
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// priceCart snapshots current prices. Inactive products block checkout.
func priceCart(cart []models.CartItem) ([]vouchers.LineItem, []inventory.StockRequirement, int, error) {
	if len(cart) == 0 {
		return nil, nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	lines := make([]vouchers.LineItem, 0, len(cart))
	reqs := make([]inventory.StockRequirement, 0, len(cart))
	inactive := make([]uuid.UUID, 0)
	weight := 0
	for _, item := range cart {
		if item.Product == nil || !item.Product.IsActive {
			inactive = append(inactive, item.ProductID)
			continue
		}
		if item.Quantity <= 0 {
			return nil, nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "cart quantities must be positive")
		}
		lines = append(lines, vouchers.LineItem{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			UnitPrice:    item.Product.Price,
			UnitDiscount: item.Product.DiscountAmount,
		})
		reqs = append(reqs, inventory.StockRequirement{ProductID: item.ProductID, Quantity: item.Quantity})
		weight += item.Product.WeightGrams * item.Quantity
	}
	if len(inactive) > 0 {
		return nil, nil, 0, pkgerrors.New(pkgerrors.CodeConflict, "cart contains unavailable products").
			WithDetails(map[string]any{"product_ids": inactive})
	}
	return lines, reqs, weight, nil
}

func buildItems(cart []models.CartItem) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(cart))
	for _, c := range cart {
		unit := c.Product.Price - c.Product.DiscountAmount
		items = append(items, models.OrderItem{
			ProductID:    c.ProductID,
			ProductName:  c.Product.Name,
			Quantity:     c.Quantity,
			UnitPrice:    c.Product.Price,
			UnitDiscount: c.Product.DiscountAmount,
			Subtotal:     unit * int64(c.Quantity),
		})
	}
	return items
}

func buildVouchers(result vouchers.Result) []models.OrderVoucher {
	out := make([]models.OrderVoucher, 0, len(result.Applied))
	for _, eval := range result.Applied {
		out = append(out, models.OrderVoucher{
			VoucherID:      eval.VoucherID,
			VoucherCode:    eval.Code,
			DiscountAmount: eval.Discount,
		})
	}
	return out
}

// pickStore ranks every active store and returns the best one, which must
// hold every item.
func (s *service) pickStore(ctx context.Context, reqs []inventory.StockRequirement, destination types.GeoPoint) (shipping.StoreCandidate, error) {
	stores, err := s.repo.ListActiveStores(ctx)
	if err != nil {
		return shipping.StoreCandidate{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stores")
	}
	if len(stores) == 0 {
		return shipping.StoreCandidate{}, pkgerrors.New(pkgerrors.CodeConflict, "no store is available")
	}

	candidates := make([]shipping.StoreCandidate, 0, len(stores))
	checks := make(map[uuid.UUID]inventory.StockCheckResult, len(stores))
	for _, store := range stores {
		check, err := s.inventory.StockCheck(ctx, store.ID, reqs)
		if err != nil {
			return shipping.StoreCandidate{}, err
		}
		checks[store.ID] = check
		candidates = append(candidates, shipping.StoreCandidate{
			StoreID:     store.ID,
			Location:    store.Location,
			RegionCode:  store.RegionCode,
			HasAllItems: check.HasAllStock,
		})
	}

	best := shipping.RankStores(candidates, destination)[0]
	if !best.HasAllItems {
		return shipping.StoreCandidate{}, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"store_id": best.StoreID,
				"items":    checks[best.StoreID].Shortfalls(),
			})
	}
	return best, nil
}

func (s *service) evaluateVouchers(ctx context.Context, codes []string, in vouchers.EvaluationInput) (vouchers.Result, error) {
	if len(codes) == 0 {
		return vouchers.Result{Applied: []vouchers.Evaluation{}}, nil
	}
	found, err := s.vouchers.FindByCodes(ctx, codes)
	if err != nil {
		return vouchers.Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vouchers")
	}

	list := make([]models.Voucher, 0, len(codes))
	for _, code := range codes {
		v, ok := found[code]
		if !ok {
			return vouchers.Result{}, pkgerrors.Newf(pkgerrors.CodeValidation, "voucher %s not found", code).
				WithDetails(map[string]any{"code": code, "reason": "not_found"})
		}
		list = append(list, v)
	}

	result, err := vouchers.EvaluateAll(list, in)
	if err != nil {
		var verr *vouchers.VoucherError
		if errors.As(err, &verr) {
			return vouchers.Result{}, pkgerrors.New(pkgerrors.CodeValidation, verr.Error()).
				WithDetails(map[string]any{"code": verr.Code, "reason": verr.Err.Error()})
		}
		return vouchers.Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid voucher")
	}
	return result, nil
}

// persist inserts the order under a fresh number, retrying when the random
// suffix collides with an existing order.
func (s *service) persist(ctx context.Context, order *models.Order, applied vouchers.Result) error {
	codes := make([]string, 0, len(applied.Applied))
	for _, eval := range applied.Applied {
		codes = append(codes, eval.Code)
	}

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number, err := s.numbers(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.ID = uuid.New()
		order.OrderNumber = number
		for i := range order.Items {
			order.Items[i].ID = uuid.Nil
		}
		for i := range order.Vouchers {
			order.Vouchers[i].ID = uuid.Nil
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			for _, eval := range applied.Applied {
				ok, err := s.vouchers.IncrementUsageTx(ctx, tx, eval.VoucherID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count voucher usage")
				}
				if !ok {
					return pkgerrors.Newf(pkgerrors.CodeConflict, "voucher %s usage exhausted", eval.Code)
				}
			}
			if err := s.repo.WithTx(tx).ClearCart(ctx, order.UserID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: order.UserID.String(), Role: string(enums.RoleCustomer)},
				Data: payloads.OrderCreatedEvent{
					OrderID:       order.ID,
					OrderNumber:   order.OrderNumber,
					UserID:        order.UserID,
					StoreID:       order.StoreID,
					PaymentMethod: order.PaymentMethod,
					TotalAmount:   order.TotalAmount,
					VoucherCodes:  codes,
				},
				OccurredAt: order.LastStatusChangeAt,
			})
		})
		if err == nil {
			return nil
		}
		if isOrderNumberCollision(err) {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "order_number", number), "order number collision, retrying")
			}
			continue
		}
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique order number")
}

func isOrderNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, "ux_orders_order_number") || db.IsUniqueViolation(err, "orders.order_number")
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if !actor.Role.IsStaff() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, query ListQuery) (*ListResult, error) {
	return s.list(ctx, ListFilter{UserID: &userID, Status: query.Status}, query)
}

func (s *service) ListAll(ctx context.Context, query ListQuery) (*ListResult, error) {
	return s.list(ctx, ListFilter{Status: query.Status}, query)
}

func (s *service) list(ctx context.Context, filter ListFilter, query ListQuery) (*ListResult, error) {
	if query.Status != nil && !query.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *query.Status)
	}
	if _, err := pagination.ParseCursor(query.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, filter, pagination.Params{Limit: query.Limit, Cursor: query.Cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &ListResult{Orders: rows, NextCursor: next}, nil
}

func (s *service) Ship(ctx context.Context, input ShipInput) (*models.Order, error) {
	if !input.Actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can ship orders")
	}
	tracking := strings.TrimSpace(input.TrackingNumber)
	if tracking == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}

	return s.transition(ctx, input.OrderID, func(tx *gorm.DB, order *models.Order) error {
		return s.lifecycle.Apply(ctx, tx, order, StatusChange{
			To:             enums.OrderStatusShipped,
			Trigger:        TriggerAdmin,
			Actor:          input.Actor.ID(),
			ActorRole:      string(input.Actor.Role),
			TrackingNumber: &tracking,
		})
	})
}

func (s *service) Confirm(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return s.lifecycle.Apply(ctx, tx, order, StatusChange{
			To:        enums.OrderStatusConfirmed,
			Trigger:   TriggerCustomer,
			Actor:     actor.ID(),
			ActorRole: string(actor.Role),
		})
	})
}

// Cancel stops an order before it ships. Customers may only cancel orders
// they have not paid for; staff may also cancel PROCESSING orders, which
// returns their stock.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancel reason is required")
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "cancel reason must be at most %d characters", maxReasonLength)
	}

	return s.transition(ctx, input.OrderID, func(tx *gorm.DB, order *models.Order) error {
		staff := input.Actor.Role.IsStaff()
		if !staff {
			if order.UserID != input.Actor.UserID {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			if !order.Status.IsPrePayment() {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s can no longer be cancelled by the customer", order.Status)
			}
		}

		restock := order.Status == enums.OrderStatusProcessing
		awaitingReview := order.Status == enums.OrderStatusWaitingPaymentConfirmation
		if err := s.lifecycle.Apply(ctx, tx, order, StatusChange{
			To:           enums.OrderStatusCancelled,
			Trigger:      input.Actor.trigger(),
			Actor:        input.Actor.ID(),
			ActorRole:    string(input.Actor.Role),
			Reason:       reason,
			CancelReason: &reason,
		}); err != nil {
			return err
		}
		if awaitingReview {
			if _, err := s.repo.WithTx(tx).RejectPendingProofs(ctx, order.ID, input.Actor.UserID, "order cancelled: "+reason, order.UpdatedAt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject pending payment proofs")
			}
		}
		if restock {
			return s.inventory.RestockForOrder(ctx, tx, order, input.Actor.ID())
		}
		return nil
	})
}

func (s *service) StockCheck(ctx context.Context, orderID uuid.UUID) (inventory.StockCheckResult, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return inventory.StockCheckResult{}, mapLoadError(err)
	}
	reqs := make([]inventory.StockRequirement, 0, len(order.Items))
	for _, item := range order.Items {
		reqs = append(reqs, inventory.StockRequirement{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return s.inventory.StockCheck(ctx, order.StoreID, reqs)
}

// transition locks the order and runs fn in one transaction, then returns
// the order as fn left it.
func (s *service) transition(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if err := fn(tx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
