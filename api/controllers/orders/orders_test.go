package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubOrderService struct {
	create     func(ctx context.Context, input internalorders.CreateInput) (*models.Order, error)
	get        func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*models.Order, error)
	list       func(ctx context.Context, userID uuid.UUID, query internalorders.ListQuery) (*internalorders.ListResult, error)
	listAll    func(ctx context.Context, query internalorders.ListQuery) (*internalorders.ListResult, error)
	ship       func(ctx context.Context, input internalorders.ShipInput) (*models.Order, error)
	confirm    func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*models.Order, error)
	cancel     func(ctx context.Context, input internalorders.CancelInput) (*models.Order, error)
	stockCheck func(ctx context.Context, id uuid.UUID) (inventory.StockCheckResult, error)
}

func (s *stubOrderService) Create(ctx context.Context, input internalorders.CreateInput) (*models.Order, error) {
	return s.create(ctx, input)
}

func (s *stubOrderService) Get(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*models.Order, error) {
	return s.get(ctx, actor, id)
}

func (s *stubOrderService) List(ctx context.Context, userID uuid.UUID, query internalorders.ListQuery) (*internalorders.ListResult, error) {
	return s.list(ctx, userID, query)
}

func (s *stubOrderService) ListAll(ctx context.Context, query internalorders.ListQuery) (*internalorders.ListResult, error) {
	return s.listAll(ctx, query)
}

func (s *stubOrderService) Ship(ctx context.Context, input internalorders.ShipInput) (*models.Order, error) {
	return s.ship(ctx, input)
}

func (s *stubOrderService) Confirm(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*models.Order, error) {
	return s.confirm(ctx, actor, id)
}

func (s *stubOrderService) Cancel(ctx context.Context, input internalorders.CancelInput) (*models.Order, error) {
	return s.cancel(ctx, input)
}

func (s *stubOrderService) StockCheck(ctx context.Context, id uuid.UUID) (inventory.StockCheckResult, error) {
	return s.stockCheck(ctx, id)
}

type stubProofService struct {
	maxBytes int64
	upload   func(ctx context.Context, input payments.UploadInput) (*models.PaymentProof, error)
	verify   func(ctx context.Context, input payments.VerifyInput) (*payments.VerifyResult, error)
}

func (s *stubProofService) MaxBytes() int64 { return s.maxBytes }

func (s *stubProofService) Upload(ctx context.Context, input payments.UploadInput) (*models.PaymentProof, error) {
	return s.upload(ctx, input)
}

func (s *stubProofService) Verify(ctx context.Context, input payments.VerifyInput) (*payments.VerifyResult, error) {
	return s.verify(ctx, input)
}

func newRequest(method, target string, body io.Reader, userID uuid.UUID, role enums.Role, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithActor(req.Context(), userID.String(), role)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func sampleOrder(userID uuid.UUID) *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "ORD-20260310-ABC123",
		UserID:         userID,
		Status:         enums.OrderStatusWaitingPayment,
		PaymentMethod:  enums.PaymentMethodBankTransfer,
		PaymentStatus:  enums.PaymentStatusPending,
		SubtotalAmount: 100000,
		ShippingCost:   10000,
		TotalAmount:    110000,
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductName: "Kopi", Quantity: 2, UnitPrice: 50000, Subtotal: 100000},
		},
	}
}

func TestCreateOrderMapsRequest(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	methodID := uuid.New()

	var captured internalorders.CreateInput
	svc := &stubOrderService{create: func(_ context.Context, input internalorders.CreateInput) (*models.Order, error) {
		captured = input
		return sampleOrder(input.UserID), nil
	}}

	body := `{"address_id":"` + addressID.String() + `","shipping_method_id":"` + methodID.String() +
		`","payment_method":"BANK_TRANSFER","voucher_codes":["HEMAT10"],"notes":"  leave at door  "}`
	req := newRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body), userID, enums.RoleCustomer, nil)
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, userID, captured.UserID)
	require.Equal(t, addressID, captured.AddressID)
	require.Equal(t, methodID, captured.ShippingMethodID)
	require.Equal(t, enums.PaymentMethodBankTransfer, captured.PaymentMethod)
	require.Equal(t, []string{"HEMAT10"}, captured.VoucherCodes)
	require.Equal(t, "leave at door", captured.Notes)

	var resp orderResponse
	decodeData(t, rec, &resp)
	require.Equal(t, "ORD-20260310-ABC123", resp.OrderNumber)
	require.Equal(t, int64(110000), resp.TotalAmount)
	require.Len(t, resp.Items, 1)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := &stubOrderService{create: func(context.Context, internalorders.CreateInput) (*models.Order, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}

	cases := map[string]string{
		"missing address": `{"shipping_method_id":"` + uuid.NewString() + `","payment_method":"BANK_TRANSFER"}`,
		"bad method":      `{"address_id":"` + uuid.NewString() + `","shipping_method_id":"` + uuid.NewString() + `","payment_method":"CASH"}`,
		"too many codes":  `{"address_id":"` + uuid.NewString() + `","shipping_method_id":"` + uuid.NewString() + `","payment_method":"BANK_TRANSFER","voucher_codes":["A","B","C","D"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := newRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body), uuid.New(), enums.RoleCustomer, nil)
			rec := httptest.NewRecorder()
			Create(svc, nil).ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, string(pkgerrors.CodeValidation), decodeErrorCode(t, rec))
		})
	}
}

func TestCreateOrderRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	Create(&stubOrderService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListOrdersParsesQuery(t *testing.T) {
	userID := uuid.New()
	var captured internalorders.ListQuery
	svc := &stubOrderService{list: func(_ context.Context, got uuid.UUID, query internalorders.ListQuery) (*internalorders.ListResult, error) {
		require.Equal(t, userID, got)
		captured = query
		return &internalorders.ListResult{Orders: []models.Order{*sampleOrder(userID)}, NextCursor: "next"}, nil
	}}

	req := newRequest(http.MethodGet, "/api/v1/orders?limit=5&status=shipped&cursor=abc", nil, userID, enums.RoleCustomer, nil)
	rec := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, captured.Limit)
	require.Equal(t, "abc", captured.Cursor)
	require.NotNil(t, captured.Status)
	require.Equal(t, enums.OrderStatusShipped, *captured.Status)

	var resp orderListResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp.Orders, 1)
	require.Equal(t, "next", resp.NextCursor)
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	req := newRequest(http.MethodGet, "/api/v1/orders?status=lost", nil, uuid.New(), enums.RoleCustomer, nil)
	rec := httptest.NewRecorder()
	List(&stubOrderService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetailPassesActorAndMapsNotFound(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrderService{get: func(_ context.Context, actor internalorders.Actor, id uuid.UUID) (*models.Order, error) {
		require.Equal(t, userID, actor.UserID)
		require.Equal(t, enums.RoleCustomer, actor.Role)
		require.Equal(t, orderID, id)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}}

	req := newRequest(http.MethodGet, "/", nil, userID, enums.RoleCustomer, map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetailIncludesPaymentProofs(t *testing.T) {
	userID := uuid.New()
	order := sampleOrder(userID)
	order.Status = enums.OrderStatusWaitingPaymentConfirmation
	rejected := "blurry"
	order.Proofs = []models.PaymentProof{
		{ID: uuid.New(), OrderID: order.ID, FileReference: "proofs/b.png", Status: enums.PaymentProofStatusPending, UploadedBy: userID},
		{ID: uuid.New(), OrderID: order.ID, FileReference: "proofs/a.png", Status: enums.PaymentProofStatusRejected, UploadedBy: userID, Notes: &rejected},
	}
	svc := &stubOrderService{get: func(context.Context, internalorders.Actor, uuid.UUID) (*models.Order, error) {
		return order, nil
	}}

	req := newRequest(http.MethodGet, "/", nil, userID, enums.RoleCustomer, map[string]string{"orderId": order.ID.String()})
	rec := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body orderResponse
	decodeData(t, rec, &body)
	require.Len(t, body.PaymentProofs, 2)
	require.Equal(t, order.Proofs[0].ID, body.PaymentProofs[0].ID)
	require.Equal(t, enums.PaymentProofStatusRejected, body.PaymentProofs[1].Status)
	require.Equal(t, "blurry", *body.PaymentProofs[1].Notes)
}

func TestDetailRejectsBadOrderID(t *testing.T) {
	req := newRequest(http.MethodGet, "/", nil, uuid.New(), enums.RoleCustomer, map[string]string{"orderId": "nope"})
	rec := httptest.NewRecorder()
	Detail(&stubOrderService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelRequiresReason(t *testing.T) {
	orderID := uuid.New()
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{}`), uuid.New(), enums.RoleCustomer, map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	Cancel(&stubOrderService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelStateConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{cancel: func(_ context.Context, input internalorders.CancelInput) (*models.Order, error) {
		require.Equal(t, "changed my mind", input.Reason)
		require.Equal(t, orderID, input.OrderID)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
	}}
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"changed my mind"}`), uuid.New(), enums.RoleCustomer, map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, string(pkgerrors.CodeStateConflict), decodeErrorCode(t, rec))
}

func TestConfirm(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrderService{confirm: func(_ context.Context, actor internalorders.Actor, id uuid.UUID) (*models.Order, error) {
		order := sampleOrder(actor.UserID)
		order.ID = id
		order.Status = enums.OrderStatusConfirmed
		return order, nil
	}}
	req := newRequest(http.MethodPost, "/", nil, userID, enums.RoleCustomer, map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	Confirm(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orderResponse
	decodeData(t, rec, &resp)
	require.Equal(t, enums.OrderStatusConfirmed, resp.Status)
	require.Equal(t, orderID, resp.ID)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestUploadProof(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	content := []byte("\x89PNG\r\n\x1a\nfake")

	svc := &stubProofService{maxBytes: 1 << 20, upload: func(_ context.Context, input payments.UploadInput) (*models.PaymentProof, error) {
		require.Equal(t, orderID, input.OrderID)
		require.Equal(t, userID, input.UserID)
		require.Equal(t, "receipt.png", input.Filename)
		data, err := io.ReadAll(input.File)
		require.NoError(t, err)
		require.Equal(t, content, data)
		return &models.PaymentProof{
			ID:          uuid.New(),
			OrderID:     input.OrderID,
			ContentType: "image/png",
			SizeBytes:   int64(len(data)),
			Status:      enums.PaymentProofStatusPending,
			UploadedBy:  input.UserID,
		}, nil
	}}

	body, contentType := multipartBody(t, "file", "receipt.png", content)
	req := newRequest(http.MethodPost, "/", body, userID, enums.RoleCustomer, map[string]string{"orderId": orderID.String()})
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	UploadProof(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp proofResponse
	decodeData(t, rec, &resp)
	require.Equal(t, enums.PaymentProofStatusPending, resp.Status)
	require.Equal(t, "image/png", resp.ContentType)
}

func TestUploadProofMissingFile(t *testing.T) {
	body, contentType := multipartBody(t, "other", "receipt.png", []byte("x"))
	req := newRequest(http.MethodPost, "/", body, uuid.New(), enums.RoleCustomer, map[string]string{"orderId": uuid.NewString()})
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	UploadProof(&stubProofService{maxBytes: 1 << 20}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadProofTooLarge(t *testing.T) {
	body, contentType := multipartBody(t, "file", "receipt.png", bytes.Repeat([]byte("a"), 200<<10))
	req := newRequest(http.MethodPost, "/", body, uuid.New(), enums.RoleCustomer, map[string]string{"orderId": uuid.NewString()})
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	UploadProof(&stubProofService{maxBytes: 1024}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, string(pkgerrors.CodePayloadTooLarge), decodeErrorCode(t, rec))
}

func TestShip(t *testing.T) {
	adminID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrderService{ship: func(_ context.Context, input internalorders.ShipInput) (*models.Order, error) {
		require.Equal(t, "JNE123", input.TrackingNumber)
		require.Equal(t, enums.RoleAdmin, input.Actor.Role)
		require.Equal(t, adminID, input.Actor.UserID)
		order := sampleOrder(uuid.New())
		order.ID = input.OrderID
		order.Status = enums.OrderStatusShipped
		order.TrackingNumber = &input.TrackingNumber
		return order, nil
	}}

	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"tracking_number":" JNE123 "}`), adminID, enums.RoleAdmin, map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	Ship(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orderResponse
	decodeData(t, rec, &resp)
	require.NotNil(t, resp.TrackingNumber)
	require.Equal(t, "JNE123", *resp.TrackingNumber)
}

func TestVerifyProofRequiresDecision(t *testing.T) {
	params := map[string]string{"orderId": uuid.NewString(), "proofId": uuid.NewString()}
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"ok"}`), uuid.New(), enums.RoleAdmin, params)
	rec := httptest.NewRecorder()
	VerifyProof(&stubProofService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyProofRejection(t *testing.T) {
	orderID := uuid.New()
	proofID := uuid.New()
	svc := &stubProofService{verify: func(_ context.Context, input payments.VerifyInput) (*payments.VerifyResult, error) {
		require.False(t, input.Approve)
		require.Equal(t, proofID, input.ProofID)
		require.Equal(t, "blurry", input.Notes)
		order := sampleOrder(uuid.New())
		order.ID = input.OrderID
		return &payments.VerifyResult{
			Order: order,
			Proof: &models.PaymentProof{ID: input.ProofID, OrderID: input.OrderID, Status: enums.PaymentProofStatusRejected},
		}, nil
	}}

	params := map[string]string{"orderId": orderID.String(), "proofId": proofID.String()}
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"approve":false,"notes":"blurry"}`), uuid.New(), enums.RoleSuper, params)
	rec := httptest.NewRecorder()
	VerifyProof(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp verifyResponse
	decodeData(t, rec, &resp)
	require.Equal(t, enums.PaymentProofStatusRejected, resp.Proof.Status)
	require.Equal(t, enums.OrderStatusWaitingPayment, resp.Order.Status)
}

func TestAdminListAndStockCheck(t *testing.T) {
	svc := &stubOrderService{
		listAll: func(_ context.Context, query internalorders.ListQuery) (*internalorders.ListResult, error) {
			require.NotNil(t, query.Status)
			require.Equal(t, enums.OrderStatusProcessing, *query.Status)
			return &internalorders.ListResult{Orders: []models.Order{}}, nil
		},
		stockCheck: func(_ context.Context, id uuid.UUID) (inventory.StockCheckResult, error) {
			return inventory.StockCheckResult{
				HasAllStock: false,
				Items:       []inventory.StockCheckItem{{ProductID: uuid.New(), Required: 3, Available: 1}},
			}, nil
		},
	}

	req := newRequest(http.MethodGet, "/api/v1/admin/orders?status=PROCESSING", nil, uuid.New(), enums.RoleAdmin, nil)
	rec := httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = newRequest(http.MethodGet, "/", nil, uuid.New(), enums.RoleAdmin, map[string]string{"orderId": uuid.NewString()})
	rec = httptest.NewRecorder()
	StockCheck(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp inventory.StockCheckResult
	decodeData(t, rec, &resp)
	require.False(t, resp.HasAllStock)
	require.Len(t, resp.Items, 1)
	require.Equal(t, 3, resp.Items[0].Required)
}
