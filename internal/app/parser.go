package app

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"tradewatch/clients/logwatcher"
	"tradewatch/internal/money"
)

// TradeType is the direction of a trade posting.
type TradeType string

const (
	TradeTypeBuy   TradeType = "WTB"
	TradeTypeSell  TradeType = "WTS"
	TradeTypeTrade TradeType = "WTT"
	TradeTypeNone  TradeType = ""
)

// ParseTradeType maps a message token to a trade direction.
func ParseTradeType(token string) (TradeType, bool) {
	switch strings.ToUpper(token) {
	case "WTB":
		return TradeTypeBuy, true
	case "WTS":
		return TradeTypeSell, true
	case "WTT":
		return TradeTypeTrade, true
	}
	return TradeTypeNone, false
}

// ParsedTrade is a trade candidate extracted from one chat line.
type ParsedTrade struct {
	Timestamp time.Time    `json:"timestamp"`
	Nick      string       `json:"nick"`
	Message   string       `json:"message"`
	Type      TradeType    `json:"type"`
	Item      string       `json:"item"`
	Quality   *int         `json:"quality,omitempty"`
	Rarity    string       `json:"rarity,omitempty"`
	Price     *money.Money `json:"price,omitempty"`
	Server    string       `json:"server"`
	Raw       string       `json:"raw"`
}

// A message only counts as a trade posting when its direction keyword
// appears within the first few tokens. Keywords buried mid-sentence
// ("anyone wts these days?") are conversation, not listings.
const directionWindow = 4

var (
	priceRE     = regexp.MustCompile(`(?i)\d+[gsc](?:\s*\d+[gsc])*`)
	qualityRE   = regexp.MustCompile(`(?i)\b(?:ql|quality)\s*(\d+)\b`)
	rarityRE    = regexp.MustCompile(`(?i)\b(rare|supreme|fantastic)\b`)
	serverTagRE = regexp.MustCompile(`\[([^\[\]]+)\]`)
	priceToken  = regexp.MustCompile(`(?i)^\d+[gsc]$`)
)

// Parser turns chat lines into trade candidates.
type Parser struct {
	defaultServer string
	now           func() time.Time
}

func NewParser(defaultServer string) *Parser {
	return &Parser{defaultServer: defaultServer, now: time.Now}
}

// Parse extracts a trade candidate from a chat line. The second return is
// false for noise lines that carry no trade direction.
func (p *Parser) Parse(line logwatcher.Line) (*ParsedTrade, bool) {
	tradeType := p.findDirection(line.Message)
	if tradeType == TradeTypeNone {
		return nil, false
	}

	trade := &ParsedTrade{
		Timestamp: p.resolveTimestamp(line.Timestamp),
		Nick:      line.Nick,
		Message:   line.Message,
		Type:      tradeType,
		Server:    p.defaultServer,
		Raw:       line.Message,
	}

	if m := serverTagRE.FindStringSubmatch(line.Message); m != nil {
		trade.Server = m[1]
	}
	if m := qualityRE.FindStringSubmatch(line.Message); m != nil {
		if q, err := strconv.Atoi(m[1]); err == nil {
			trade.Quality = &q
		}
	}
	if m := rarityRE.FindString(line.Message); m != "" {
		trade.Rarity = strings.ToLower(m)
	}
	if m := priceRE.FindString(line.Message); m != "" {
		trade.Price = money.ParseOrNil(m)
	}
	trade.Item = p.extractItem(line.Message)

	return trade, true
}

// findDirection scans the first directionWindow tokens for a trade keyword.
func (p *Parser) findDirection(message string) TradeType {
	tokens := strings.Fields(message)
	limit := len(tokens)
	if limit > directionWindow {
		limit = directionWindow
	}
	for i := 0; i < limit; i++ {
		token := strings.Trim(tokens[i], ".,!:")
		if tradeType, ok := ParseTradeType(token); ok {
			return tradeType
		}
	}
	return TradeTypeNone
}

// extractItem collects the tokens following the direction keyword, skipping
// quality markers, rarity adjectives, connectives and stopping at the price.
func (p *Parser) extractItem(message string) string {
	stripped := serverTagRE.ReplaceAllString(message, " ")
	tokens := strings.Fields(stripped)

	keywordIdx := -1
	limit := len(tokens)
	if limit > directionWindow {
		limit = directionWindow
	}
	for i := 0; i < limit; i++ {
		if _, ok := ParseTradeType(strings.Trim(tokens[i], ".,!:")); ok {
			keywordIdx = i
			break
		}
	}
	if keywordIdx < 0 {
		return ""
	}

	var parts []string
	skipNext := false
	for _, token := range tokens[keywordIdx+1:] {
		if skipNext {
			skipNext = false
			continue
		}
		lowered := strings.ToLower(strings.Trim(token, ".,!:"))
		switch {
		case lowered == "":
			continue
		case lowered == "ql" || lowered == "quality":
			// The following token is the quality number.
			skipNext = true
			continue
		case qualityRE.MatchString(lowered):
			continue
		case rarityRE.MatchString(lowered):
			continue
		case lowered == "for":
			continue
		case priceToken.MatchString(lowered):
			return strings.Join(parts, " ")
		}
		parts = append(parts, strings.Trim(token, ".,!:"))
	}
	return strings.Join(parts, " ")
}

// resolveTimestamp binds a HH:MM:SS log time to the current date. Lines
// that fail to parse fall back to now.
func (p *Parser) resolveTimestamp(clock string) time.Time {
	now := p.now()
	parsed, err := time.Parse("15:04:05", clock)
	if err != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), 0, now.Location())
}
