package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"tradewatch/internal/money"
)

// Trades reported within the same window that normalize to the same posting
// collapse to one record server-side.
const dedupWindow = 5 * time.Minute

var (
	qualityMarkerRE = regexp.MustCompile(`(?i)\b(ql|quality)\s*\d+`)
	rarityWordRE    = regexp.MustCompile(`(?i)\b(rare|supreme|fantastic)\b`)
	separatorRE     = regexp.MustCompile(`[,\s]+`)
)

// NormalizeItemName reduces an item description to its stable core so that
// "Rare Pickaxe, QL 90" and "rare pickaxe ql90" hash identically.
func NormalizeItemName(item string) string {
	s := strings.ToLower(item)
	s = qualityMarkerRE.ReplaceAllString(s, " ")
	s = rarityWordRE.ReplaceAllString(s, " ")
	s = separatorRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type canonicalTrade struct {
	Server      string `json:"server"`
	Seller      string `json:"seller"`
	Item        string `json:"item"`
	PriceCopper int64  `json:"price_copper"`
	TimeWindow  int64  `json:"time_window"`
}

// TradeHash computes the dedup digest for a trade candidate: hex SHA-256
// over the canonical JSON of its normalized identifying fields, with the
// timestamp bucketed to the dedup window.
func TradeHash(trade *ParsedTrade) string {
	ts := trade.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	canonical := canonicalTrade{
		Server:      strings.ToLower(strings.TrimSpace(trade.Server)),
		Seller:      strings.ToLower(strings.TrimSpace(trade.Nick)),
		Item:        NormalizeItemName(trade.Item),
		PriceCopper: money.ToCopper(trade.Price),
		TimeWindow:  ts.UnixMilli() / dedupWindow.Milliseconds(),
	}

	// Field order in the struct fixes the JSON byte layout.
	data, _ := json.Marshal(canonical)
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
