package enums

import "fmt"

// LedgerOperation classifies an inventory ledger entry.
type LedgerOperation string

const (
	LedgerOpAddition    LedgerOperation = "addition"
	LedgerOpSubtraction LedgerOperation = "subtraction"
	LedgerOpReservation LedgerOperation = "reservation"
	LedgerOpRelease     LedgerOperation = "release"
	LedgerOpTransfer    LedgerOperation = "transfer"
)

var validLedgerOperations = []LedgerOperation{
	LedgerOpAddition,
	LedgerOpSubtraction,
	LedgerOpReservation,
	LedgerOpRelease,
	LedgerOpTransfer,
}

// IsValid reports whether the value matches a canonical ledger operation.
func (o LedgerOperation) IsValid() bool {
	for _, candidate := range validLedgerOperations {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseLedgerOperation converts raw input into a LedgerOperation.
func ParseLedgerOperation(value string) (LedgerOperation, error) {
	for _, candidate := range validLedgerOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger operation %q", value)
}
