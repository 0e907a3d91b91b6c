package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("WAITING_PAYMENT_CONFIRMATION")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != OrderStatusWaitingPaymentConfirmation {
		t.Fatalf("unexpected status %q", got)
	}
	if _, err := ParseOrderStatus("waiting_payment"); err == nil {
		t.Fatalf("status parsing must be case sensitive")
	}
}

func TestOrderStatusClassification(t *testing.T) {
	if !OrderStatusConfirmed.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatalf("confirmed and cancelled must be terminal")
	}
	if OrderStatusShipped.IsTerminal() {
		t.Fatalf("shipped is not terminal")
	}
	if !OrderStatusWaitingPayment.IsPrePayment() || OrderStatusProcessing.IsPrePayment() {
		t.Fatalf("unexpected pre-payment classification")
	}
}

func TestStockJournalTypeSign(t *testing.T) {
	cases := map[StockJournalType]int{
		StockJournalAddition:    1,
		StockJournalReturn:      1,
		StockJournalSubtraction: -1,
		StockJournalSale:        -1,
		StockJournalType("X"):   0,
	}
	for typ, want := range cases {
		if got := typ.Sign(); got != want {
			t.Fatalf("%s: expected sign %d got %d", typ, want, got)
		}
	}
}

func TestRoleIsStaff(t *testing.T) {
	if RoleCustomer.IsStaff() {
		t.Fatalf("customer is not staff")
	}
	if !RoleAdmin.IsStaff() || !RoleSuper.IsStaff() {
		t.Fatalf("admin and super are staff")
	}
	if _, err := ParseRole("root"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
}

func TestPaymentMethodBehaviour(t *testing.T) {
	if !PaymentMethodBankTransfer.RequiresProof() || PaymentMethodBankTransfer.SettlesViaWebhook() {
		t.Fatalf("bank transfer is settled by proof review")
	}
	if !PaymentMethodGateway.SettlesViaWebhook() || PaymentMethodGateway.RequiresProof() {
		t.Fatalf("gateway is settled by webhook")
	}
	got, err := ParsePaymentMethod(" payment_gateway ")
	if err != nil || got != PaymentMethodGateway {
		t.Fatalf("expected lenient parse, got %q %v", got, err)
	}
	if _, err := ParsePaymentMethod("CASH"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}

func TestPaymentStatusSettled(t *testing.T) {
	if !PaymentStatusPaid.IsSettled() || PaymentStatusPending.IsSettled() || PaymentStatusFailed.IsSettled() {
		t.Fatalf("only PAID is settled")
	}
	if _, err := ParsePaymentStatus("refunded"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
