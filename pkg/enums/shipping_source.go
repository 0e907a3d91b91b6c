package enums

import "fmt"

// ShippingSource records which path produced a shipping cost.
type ShippingSource string

const (
	ShippingSourceExternal ShippingSource = "EXTERNAL"
	ShippingSourceFallback ShippingSource = "FALLBACK"
)

var validShippingSources = []ShippingSource{
	ShippingSourceExternal,
	ShippingSourceFallback,
}

// String implements fmt.Stringer.
func (s ShippingSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingSource.
func (s ShippingSource) IsValid() bool {
	for _, candidate := range validShippingSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingSource converts raw input into a ShippingSource.
func ParseShippingSource(value string) (ShippingSource, error) {
	for _, candidate := range validShippingSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping source %q", value)
}
