package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: "debug", Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWithOrderFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "orders", Output: buf})

	ctx := log.WithOrder(context.Background(), "0b7c", "ORD-20260101000000-ABCDEF")
	log.Info(ctx, "order transitioned")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["order_number"] != "ORD-20260101000000-ABCDEF" {
		t.Fatalf("unexpected order number field: %v", entry["order_number"])
	}
	if entry["service"] != "orders" {
		t.Fatalf("unexpected service field: %v", entry["service"])
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: "debug", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("did not expect stack when warn stack disabled")
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: "warn", Output: buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info for empty input, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fall back to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "shown")

	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Fatalf("debug entry written at default level: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("info entry missing: %s", buf.String())
	}
	if !New(Options{Level: "debug", Output: buf}).Enabled(zerolog.DebugLevel) {
		t.Fatalf("explicit debug level ignored")
	}
}

func TestLoggerErrorTagsTypedCodeAndCallerStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	log.Error(context.Background(), "lookup failed", pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["error_code"] != string(pkgerrors.CodeNotFound) {
		t.Fatalf("expected error_code, got %v", entry["error_code"])
	}
	stack, _ := entry["stack"].(string)
	if !strings.HasPrefix(stack, "github.com/angelmondragon/storefront-backend/pkg/logger.TestLoggerErrorTagsTypedCodeAndCallerStack") {
		t.Fatalf("stack should start at the caller, got %q", stack)
	}
}

func TestLoggerWithPayment(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "payments", Output: buf})
	log.Info(log.WithPayment(context.Background(), "midtrans", "tx-1"), "settled")

	if !bytes.Contains(buf.Bytes(), []byte(`"payment_transaction_id":"tx-1"`)) {
		t.Fatalf("expected payment fields; entry=%s", buf.String())
	}
	if !log.Enabled(zerolog.InfoLevel) || log.Enabled(zerolog.DebugLevel) {
		t.Fatalf("default level should be info")
	}
}
