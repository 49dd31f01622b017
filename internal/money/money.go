// Package money implements copper-denominated game currency amounts.
// All arithmetic is integer math on copper; 1 gold = 100 silver = 10000 copper.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	CopperPerSilver int64 = 100
	CopperPerGold   int64 = 10000
)

var (
	ErrNegativeAmount = errors.New("money: amount cannot be negative")
	ErrInvalidFormat  = errors.New("money: unrecognized price format")
	ErrNegativeFactor = errors.New("money: factor cannot be negative")
)

var (
	goldRE   = regexp.MustCompile(`(\d+)g`)
	silverRE = regexp.MustCompile(`(\d+)s`)
	copperRE = regexp.MustCompile(`(\d+)c`)
)

// Money is an immutable amount of game currency stored as copper.
// The zero value is 0c and is valid.
type Money struct {
	copper int64
}

// FromCopper builds a Money from a raw copper amount.
func FromCopper(copper int64) (Money, error) {
	if copper < 0 {
		return Money{}, ErrNegativeAmount
	}
	return Money{copper: copper}, nil
}

// FromString parses price strings like "1g", "50s", "1g 50s 5c" or "1g50s".
// Units may appear in any order and are case-insensitive. A string with no
// recognizable unit token is an error.
func FromString(s string) (Money, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	var total int64
	matched := false
	for _, part := range []struct {
		re   *regexp.Regexp
		unit int64
	}{
		{goldRE, CopperPerGold},
		{silverRE, CopperPerSilver},
		{copperRE, 1},
	} {
		m := part.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		total += n * part.unit
		matched = true
	}
	if !matched {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return Money{copper: total}, nil
}

// Copper returns the raw copper amount.
func (m Money) Copper() int64 {
	return m.copper
}

// ToSilver returns the amount in silver as an exact decimal.
func (m Money) ToSilver() decimal.Decimal {
	return decimal.NewFromInt(m.copper).Div(decimal.NewFromInt(CopperPerSilver))
}

// ToGold returns the amount in gold as an exact decimal.
func (m Money) ToGold() decimal.Decimal {
	return decimal.NewFromInt(m.copper).Div(decimal.NewFromInt(CopperPerGold))
}

// String renders the amount as "1g 50s 5c", omitting zero units. A zero
// amount renders as "0c".
func (m Money) String() string {
	if m.copper == 0 {
		return "0c"
	}
	gold := m.copper / CopperPerGold
	silver := (m.copper % CopperPerGold) / CopperPerSilver
	copper := m.copper % CopperPerSilver

	parts := make([]string, 0, 3)
	if gold > 0 {
		parts = append(parts, fmt.Sprintf("%dg", gold))
	}
	if silver > 0 {
		parts = append(parts, fmt.Sprintf("%ds", silver))
	}
	if copper > 0 {
		parts = append(parts, fmt.Sprintf("%dc", copper))
	}
	return strings.Join(parts, " ")
}

func (m Money) Equals(other Money) bool {
	return m.copper == other.copper
}

func (m Money) Add(other Money) Money {
	return Money{copper: m.copper + other.copper}
}

// Sub returns m minus other, erroring rather than going negative.
func (m Money) Sub(other Money) (Money, error) {
	if other.copper > m.copper {
		return Money{}, ErrNegativeAmount
	}
	return Money{copper: m.copper - other.copper}, nil
}

// Mul scales the amount by a non-negative factor, flooring to whole copper.
func (m Money) Mul(factor float64) (Money, error) {
	if factor < 0 {
		return Money{}, ErrNegativeFactor
	}
	return Money{copper: int64(math.Floor(float64(m.copper) * factor))}, nil
}

// MarshalJSON encodes the amount as its bare copper integer.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.copper)
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var copper int64
	if err := json.Unmarshal(data, &copper); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	if copper < 0 {
		return ErrNegativeAmount
	}
	m.copper = copper
	return nil
}
