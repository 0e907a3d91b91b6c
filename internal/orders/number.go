package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	orderSuffixLength = 6
)

// NewOrderNumber returns ORD-YYYYMMDDHHMMSS-XXXXXX where the suffix is
// random Crockford base32. Uniqueness is enforced by ux_orders_order_number.
func NewOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, orderSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	suffix := make([]byte, orderSuffixLength)
	for i, b := range buf {
		suffix[i] = crockfordAlphabet[b&31]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102150405"), suffix), nil
}
