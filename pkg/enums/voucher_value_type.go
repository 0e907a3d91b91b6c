package enums

import "fmt"

// VoucherValueType says how a voucher value is interpreted.
type VoucherValueType string

const (
	VoucherValuePercentage VoucherValueType = "PERCENTAGE"
	VoucherValueFixed      VoucherValueType = "FIXED"
)

var validVoucherValueTypes = []VoucherValueType{
	VoucherValuePercentage,
	VoucherValueFixed,
}

// String implements fmt.Stringer.
func (v VoucherValueType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VoucherValueType.
func (v VoucherValueType) IsValid() bool {
	for _, candidate := range validVoucherValueTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherValueType converts raw input into a VoucherValueType.
func ParseVoucherValueType(value string) (VoucherValueType, error) {
	for _, candidate := range validVoucherValueTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher value type %q", value)
}
