package payments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

// DefaultProofMaxBytes caps proof uploads when no limit is configured.
const DefaultProofMaxBytes int64 = 2 << 20

var allowedProofExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

var allowedProofTypes = []string{"image/jpeg", "image/png"}

// UploadInput is a bank-transfer receipt sent by the order owner.
type UploadInput struct {
	OrderID  uuid.UUID
	UserID   uuid.UUID
	Filename string
	File     io.Reader
}

// VerifyInput is an admin decision on a pending proof.
type VerifyInput struct {
	OrderID uuid.UUID
	ProofID uuid.UUID
	Approve bool
	Notes   string
	Actor   orders.Actor
}

// VerifyResult carries the order and proof as the decision left them.
type VerifyResult struct {
	Order *models.Order
	Proof *models.PaymentProof
}

type ProofServiceParams struct {
	Orders    orders.Repository
	Proofs    *Repository
	Tx        txRunner
	Lifecycle statusApplier
	Inventory stockLedger
	Storage   storage.Store
	Metrics   *metrics.PaymentMetrics
	Logger    *logger.Logger
	MaxBytes  int64
}

// ProofService handles manual bank-transfer payments.
type ProofService struct {
	orders    orders.Repository
	proofs    *Repository
	tx        txRunner
	lifecycle statusApplier
	inventory stockLedger
	storage   storage.Store
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
	maxBytes  int64
	now       func() time.Time
}

func NewProofService(params ProofServiceParams) (*ProofService, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Proofs == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("proof storage required")
	}
	maxBytes := params.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultProofMaxBytes
	}
	return &ProofService{
		orders:    params.Orders,
		proofs:    params.Proofs,
		tx:        params.Tx,
		lifecycle: params.Lifecycle,
		inventory: params.Inventory,
		storage:   params.Storage,
		metrics:   params.Metrics,
		logg:      params.Logger,
		maxBytes:  maxBytes,
		now:       time.Now,
	}, nil
}

// MaxBytes is the largest accepted upload.
func (s *ProofService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores the file, records a PENDING proof and moves the order to
// WAITING_PAYMENT_CONFIRMATION.
func (s *ProofService) Upload(ctx context.Context, input UploadInput) (*models.PaymentProof, error) {
	if input.File == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	ext := strings.ToLower(path.Ext(strings.TrimSpace(input.Filename)))
	if _, ok := allowedProofExtensions[ext]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file must be a jpg, jpeg or png image")
	}

	data, err := io.ReadAll(io.LimitReader(input.File, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, pkgerrors.Newf(pkgerrors.CodePayloadTooLarge, "file exceeds %d bytes", s.maxBytes).
			WithDetails(map[string]any{"max_bytes": s.maxBytes})
	}
	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), allowedProofTypes...) {
		return nil, pkgerrors.Newf(pkgerrors.CodeUnsupportedMedia, "file content %s is not an accepted image", detected.String())
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	if order.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err := checkProofAccepted(order); err != nil {
		return nil, err
	}

	proofID := uuid.New()
	key := path.Join("orders", order.ID.String(), proofID.String()+ext)
	ref, err := s.storage.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment proof")
	}

	proof := &models.PaymentProof{
		ID:            proofID,
		OrderID:       order.ID,
		FileReference: ref,
		ContentType:   detected.String(),
		SizeBytes:     int64(len(data)),
		Status:        enums.PaymentProofStatusPending,
		UploadedBy:    input.UserID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.orders.WithTx(tx).LockByID(ctx, order.ID)
		if err != nil {
			return mapOrderError(err)
		}
		if err := checkProofAccepted(locked); err != nil {
			return err
		}
		if err := s.proofs.WithTx(tx).CreateProof(ctx, proof); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment proof")
		}
		return s.lifecycle.Apply(ctx, tx, locked, orders.StatusChange{
			To:        enums.OrderStatusWaitingPaymentConfirmation,
			Trigger:   orders.TriggerCustomer,
			Actor:     input.UserID.String(),
			ActorRole: string(enums.RoleCustomer),
			Reason:    "payment proof uploaded",
		})
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, ref); delErr != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "file_reference", ref), "remove orphaned payment proof", delErr)
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrder(ctx, order.ID.String(), order.OrderNumber)
		s.logg.Info(s.logg.WithField(logCtx, "proof_id", proof.ID.String()), "payment proof uploaded")
	}
	return proof, nil
}

func checkProofAccepted(order *models.Order) error {
	if !order.PaymentMethod.RequiresProof() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment proofs are only accepted for bank transfer orders")
	}
	if order.Status != enums.OrderStatusWaitingPayment {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s does not accept payment proofs", order.Status)
	}
	return nil
}

// Verify approves or rejects a pending proof. Approval takes the stock and
// marks the order paid in the same transaction.
func (s *ProofService) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if !input.Actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can verify payment proofs")
	}
	var notes *string
	if trimmed := strings.TrimSpace(input.Notes); trimmed != "" {
		notes = &trimmed
	}

	result := &VerifyResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).LockByID(ctx, input.OrderID)
		if err != nil {
			return mapOrderError(err)
		}
		repo := s.proofs.WithTx(tx)
		proof, err := repo.FindProof(ctx, input.ProofID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment proof not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment proof")
		}
		if proof.OrderID != order.ID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment proof not found")
		}
		if proof.Status != enums.PaymentProofStatusPending {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment proof already %s", strings.ToLower(string(proof.Status)))
		}
		if order.Status != enums.OrderStatusWaitingPaymentConfirmation {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s is not awaiting payment confirmation", order.Status)
		}

		status := enums.PaymentProofStatusRejected
		if input.Approve {
			status = enums.PaymentProofStatusVerified
		}
		now := s.now().UTC()
		ok, err := repo.ReviewProof(ctx, proof.ID, status, input.Actor.UserID, notes, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "review payment proof")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment proof reviewed concurrently")
		}
		reviewer := input.Actor.UserID
		proof.Status = status
		proof.VerifiedBy = &reviewer
		proof.VerifiedAt = &now
		proof.Notes = notes

		change := orders.StatusChange{
			Actor:     input.Actor.ID(),
			ActorRole: string(input.Actor.Role),
			Reason:    input.Notes,
		}
		if input.Approve {
			if err := s.inventory.DecrementForOrder(ctx, tx, order, input.Actor.ID()); err != nil {
				return err
			}
			paid := enums.PaymentStatusPaid
			change.To = enums.OrderStatusProcessing
			change.Trigger = orders.TriggerAdmin
			change.PaymentStatus = &paid
		} else {
			change.To = enums.OrderStatusWaitingPayment
			change.Trigger = orders.TriggerProofRejected
		}
		if err := s.lifecycle.Apply(ctx, tx, order, change); err != nil {
			return err
		}
		result.Order = order
		result.Proof = proof
		return nil
	})
	if err != nil {
		return nil, err
	}

	decision := "rejected"
	if input.Approve {
		decision = "approved"
	}
	s.metrics.IncProofVerification(decision)
	if s.logg != nil {
		logCtx := s.logg.WithOrder(ctx, result.Order.ID.String(), result.Order.OrderNumber)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"proof_id": result.Proof.ID.String(),
			"decision": decision,
			"admin_id": input.Actor.ID(),
		})
		s.logg.Info(logCtx, "payment proof reviewed")
	}
	return result, nil
}

func mapOrderError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
