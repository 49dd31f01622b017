package money

// Helpers for boundaries that traffic in raw copper integers or optional
// prices (storage rows, API payloads, parsed trades).

// FormatCopper renders a raw copper amount for display. Non-positive
// amounts render as "0c".
func FormatCopper(copper int64) string {
	if copper <= 0 {
		return "0c"
	}
	m, err := FromCopper(copper)
	if err != nil {
		return "0c"
	}
	return m.String()
}

// ToCopper unwraps an optional Money, treating nil as zero.
func ToCopper(m *Money) int64 {
	if m == nil {
		return 0
	}
	return m.Copper()
}

// FromCopperOrNil wraps a copper amount, mapping invalid (negative) input
// to nil.
func FromCopperOrNil(copper int64) *Money {
	m, err := FromCopper(copper)
	if err != nil {
		return nil
	}
	return &m
}

// ParseOrNil parses a price string, mapping unparseable input to nil.
func ParseOrNil(s string) *Money {
	m, err := FromString(s)
	if err != nil {
		return nil
	}
	return &m
}
