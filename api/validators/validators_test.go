package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type sampleBody struct {
	Reason string   `json:"reason" validate:"required,notblank,max=10"`
	Method string   `json:"method" validate:"omitempty,oneof=A B"`
	Codes  []string `json:"codes" validate:"max=2,dive,required,max=4"`
	Count  int      `json:"count"`
}

func TestDecodeJSONBody(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		field  string
		reason string
	}{
		{name: "missing", body: `{}`, field: "reason", reason: "is required"},
		{name: "too long", body: `{"reason":"far too long reason"}`, field: "reason", reason: "must be at most 10"},
		{name: "enum", body: `{"reason":"ok","method":"C"}`, field: "method", reason: "must be one of [A B]"},
		{name: "blank", body: `{"reason":"   "}`, field: "reason", reason: "must not be blank"},
		{name: "nested", body: `{"reason":"ok","codes":["ab","toolong"]}`, field: "codes[1]", reason: "must be at most 4"},
		{name: "type", body: `{"reason":"ok","count":"three"}`, field: "count", reason: "must be a int"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dest sampleBody
			err := DecodeJSONBody(req, &dest)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
			details, ok := pkgerrors.As(err).Details().(map[string]string)
			require.True(t, ok)
			require.Equal(t, tc.reason, details[tc.field])
		})
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"ok","extra":1}`))
	var dest sampleBody
	err := DecodeJSONBody(req, &dest)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	body := `{"reason":"` + strings.Repeat("a", MaxJSONBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest sampleBody
	err := DecodeJSONBody(req, &dest)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePayloadTooLarge), "got %v", err)
}

func TestDecodeJSONBodyRejectsMalformedShapes(t *testing.T) {
	bodies := map[string]string{
		"empty":    ``,
		"spaces":   `   `,
		"trailing": `{"reason":"ok"}{"reason":"again"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			var dest sampleBody
			err := DecodeJSONBody(req, &dest)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	value, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, value)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id.String())
	rctx.URLParams.Add("proofId", "nope")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "orderId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "proofId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseUUIDParam(req, "inventoryId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryEnum(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?status=shipped", nil)
	got, err := ParseQueryEnum(req, "status", enums.ParseOrderStatus)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, enums.OrderStatusShipped, *got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err = ParseQueryEnum(req, "status", enums.ParseOrderStatus)
	require.NoError(t, err)
	require.Nil(t, got)

	req = httptest.NewRequest(http.MethodGet, "/?status=lost", nil)
	_, err = ParseQueryEnum(req, "status", enums.ParseOrderStatus)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "abc", SanitizeString(" abc ", 0))
	require.Equal(t, "tolong\ncepat", SanitizeString("tolong\x00\ncepat", 0))
	require.Equal(t, "kirim ké", SanitizeString("kirim kémasan", 8))
}
