package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// MustCreateStore inserts an active store at loc.
func MustCreateStore(t *testing.T, conn *gorm.DB, name string, loc types.GeoPoint) *models.Store {
	t.Helper()
	store := &models.Store{Name: name, Location: loc, RegionCode: "3171", IsActive: true}
	if err := conn.Create(store).Error; err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

// MustCreateProduct inserts an active product.
func MustCreateProduct(t *testing.T, conn *gorm.DB, name string, price, discount int64) *models.Product {
	t.Helper()
	product := &models.Product{Name: name, Price: price, DiscountAmount: discount, WeightGrams: 500, IsActive: true}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// MustCreateInventory inserts a counter together with the ADDITION journal
// row that explains it.
func MustCreateInventory(t *testing.T, conn *gorm.DB, productID, storeID uuid.UUID, qty int) *models.Inventory {
	t.Helper()
	inv := &models.Inventory{ProductID: productID, StoreID: storeID, Quantity: qty}
	if err := conn.Create(inv).Error; err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	if qty > 0 {
		journal := &models.StockJournal{
			InventoryID: inv.ID,
			Delta:       qty,
			Type:        enums.StockJournalAddition,
			Note:        "fixture",
			CreatedBy:   "test",
		}
		if err := conn.Create(journal).Error; err != nil {
			t.Fatalf("create journal: %v", err)
		}
	}
	return inv
}

// MustCreateAddress inserts an address for userID at loc.
func MustCreateAddress(t *testing.T, conn *gorm.DB, userID uuid.UUID, loc types.GeoPoint) *models.Address {
	t.Helper()
	addr := &models.Address{
		UserID:        userID,
		RecipientName: "Test Recipient",
		Phone:         "+6281200000000",
		Street:        "Jl. Test 1",
		City:          "Jakarta",
		Province:      "DKI Jakarta",
		PostalCode:    "10110",
		RegionCode:    "3171",
		Location:      loc,
	}
	if err := conn.Create(addr).Error; err != nil {
		t.Fatalf("create address: %v", err)
	}
	return addr
}

// MustCreateShippingMethod inserts an active courier service.
func MustCreateShippingMethod(t *testing.T, conn *gorm.DB, courier, service string) *models.ShippingMethod {
	t.Helper()
	method := &models.ShippingMethod{Name: courier + " " + service, CourierCode: courier, ServiceCode: service, IsActive: true}
	if err := conn.Create(method).Error; err != nil {
		t.Fatalf("create shipping method: %v", err)
	}
	return method
}

// MustAddToCart puts qty of productID in the user's cart.
func MustAddToCart(t *testing.T, conn *gorm.DB, userID, productID uuid.UUID, qty int) {
	t.Helper()
	if err := conn.Create(&models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}).Error; err != nil {
		t.Fatalf("create cart item: %v", err)
	}
}

// MustCreateVoucher inserts v after filling a validity window around now.
func MustCreateVoucher(t *testing.T, conn *gorm.DB, v *models.Voucher) *models.Voucher {
	t.Helper()
	if v.StartsAt.IsZero() {
		v.StartsAt = time.Now().Add(-time.Hour)
	}
	if v.EndsAt.IsZero() {
		v.EndsAt = time.Now().Add(24 * time.Hour)
	}
	if v.Name == "" {
		v.Name = v.Code
	}
	v.IsActive = true
	if err := conn.Create(v).Error; err != nil {
		t.Fatalf("create voucher: %v", err)
	}
	return v
}
