package enums

import "fmt"

// StockJournalType classifies a stock movement.
type StockJournalType string

const (
	StockJournalAddition    StockJournalType = "ADDITION"
	StockJournalSubtraction StockJournalType = "SUBTRACTION"
	StockJournalSale        StockJournalType = "SALE"
	StockJournalReturn      StockJournalType = "RETURN"
)

var validStockJournalTypes = []StockJournalType{
	StockJournalAddition,
	StockJournalSubtraction,
	StockJournalSale,
	StockJournalReturn,
}

// String implements fmt.Stringer.
func (s StockJournalType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockJournalType.
func (s StockJournalType) IsValid() bool {
	for _, candidate := range validStockJournalTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockJournalType converts raw input into a StockJournalType.
func ParseStockJournalType(value string) (StockJournalType, error) {
	for _, candidate := range validStockJournalTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock journal type %q", value)
}

// Sign is +1 for movements that add stock and -1 for those that remove it.
func (s StockJournalType) Sign() int {
	switch s {
	case StockJournalAddition, StockJournalReturn:
		return 1
	case StockJournalSubtraction, StockJournalSale:
		return -1
	default:
		return 0
	}
}
