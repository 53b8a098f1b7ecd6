package ledger

// Shape is the derived form of a transaction's line set. It is recomputed
// from the lines at every read/write boundary and never stored, so it can't
// drift from the actual data.
type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeNonTransfer
	ShapeTransfer
)

func (s Shape) String() string {
	switch s {
	case ShapeNonTransfer:
		return "non_transfer"
	case ShapeTransfer:
		return "transfer"
	}
	return "invalid"
}

// InvalidReason explains why a line set satisfies neither shape.
type InvalidReason string

const (
	ReasonEmptyLines    InvalidReason = "empty_lines"
	ReasonZeroAmount    InvalidReason = "zero_amount"
	ReasonMixedAccounts InvalidReason = "mixed_accounts_or_shape"
)

// Classify decides whether a complete line set forms a valid non-transfer,
// a valid transfer, or neither. Callers must pass the full proposed set,
// never a partial diff.
//
// Rules:
//   - every amount must be non-zero
//   - transfer: exactly two lines, two distinct accounts, category and payee
//     null on both, amounts summing to zero
//   - non-transfer: one or more lines all on the same account; category and
//     payee are unconstrained per line
func Classify(lines []Line) (Shape, InvalidReason) {
	if len(lines) == 0 {
		return ShapeInvalid, ReasonEmptyLines
	}
	for _, line := range lines {
		if line.AmountMinor == 0 {
			return ShapeInvalid, ReasonZeroAmount
		}
	}

	if len(lines) == 2 && isTransferPair(lines[0], lines[1]) {
		return ShapeTransfer, ""
	}

	first := lines[0].AccountID
	for _, line := range lines[1:] {
		if line.AccountID != first {
			return ShapeInvalid, ReasonMixedAccounts
		}
	}
	return ShapeNonTransfer, ""
}

func isTransferPair(a, b Line) bool {
	if a.AccountID == b.AccountID {
		return false
	}
	if a.CategoryID != nil || b.CategoryID != nil {
		return false
	}
	if a.PayeeID != nil || b.PayeeID != nil {
		return false
	}
	return a.AmountMinor+b.AmountMinor == 0
}
