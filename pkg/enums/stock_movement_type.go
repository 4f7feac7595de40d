package enums

import "fmt"

// StockMovementType classifies an entry in the stock movement ledger.
type StockMovementType string

const (
	StockMovementTypeSale       StockMovementType = "sale"
	StockMovementTypeRestock    StockMovementType = "restock"
	StockMovementTypeAdjustment StockMovementType = "adjustment"
	StockMovementTypeTransfer   StockMovementType = "transfer"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementTypeSale,
	StockMovementTypeRestock,
	StockMovementTypeAdjustment,
	StockMovementTypeTransfer,
}

// String implements fmt.Stringer.
func (s StockMovementType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockMovementType.
func (s StockMovementType) IsValid() bool {
	for _, candidate := range validStockMovementTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockMovementType converts raw input into a StockMovementType.
func ParseStockMovementType(value string) (StockMovementType, error) {
	for _, candidate := range validStockMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement type %q", value)
}
