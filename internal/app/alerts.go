package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tradewatch/clients/notifier"
	"tradewatch/clients/sound"
	"tradewatch/clients/store"
	"tradewatch/internal/money"
)

const (
	storageKeyAlerts = "alerts"
	maxFiredHistory  = 50
	defaultSoundID   = "notification"
)

// TradeAlert is one user-configured alert rule.
type TradeAlert struct {
	ID         string      `json:"id"`
	Term       string      `json:"term"`
	TradeTypes []TradeType `json:"tradeTypes,omitempty"`
	MaxPrice   *int64      `json:"maxPrice,omitempty"`
	MinPrice   *int64      `json:"minPrice,omitempty"`
	Sound      string      `json:"sound,omitempty"`
	Enabled    bool        `json:"enabled"`
}

// FiredAlert records one rule match for history display.
type FiredAlert struct {
	ID      string      `json:"id"`
	Term    string      `json:"term"`
	Trade   ParsedTrade `json:"trade"`
	FiredAt time.Time   `json:"firedAt"`
}

// CheckAlerts evaluates a trade candidate against the rules in order and
// returns a copy of the first enabled rule that matches, or nil.
func CheckAlerts(trade *ParsedTrade, rules []TradeAlert) *TradeAlert {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !matchesKeywords(trade, rule.Term) {
			continue
		}
		if !matchesTradeType(trade, rule.TradeTypes) {
			continue
		}
		if !matchesPrice(trade, rule.MinPrice, rule.MaxPrice) {
			continue
		}
		matched := rule
		return &matched
	}
	return nil
}

// matchesKeywords requires every whitespace-separated term word to appear
// in the message, case-insensitively.
func matchesKeywords(trade *ParsedTrade, term string) bool {
	words := strings.Fields(strings.ToLower(term))
	if len(words) == 0 {
		return false
	}
	message := strings.ToLower(trade.Message)
	return lo.EveryBy(words, func(word string) bool {
		return strings.Contains(message, word)
	})
}

// matchesTradeType treats an empty allowed set as "any direction". A
// candidate with no direction never matches a non-empty set.
func matchesTradeType(trade *ParsedTrade, allowed []TradeType) bool {
	if len(allowed) == 0 {
		return true
	}
	if trade.Type == TradeTypeNone {
		return false
	}
	return lo.Contains(allowed, trade.Type)
}

// matchesPrice applies inclusive copper bounds. A candidate without a
// parsed price never matches a rule that carries bounds.
func matchesPrice(trade *ParsedTrade, minPrice, maxPrice *int64) bool {
	if minPrice == nil && maxPrice == nil {
		return true
	}
	if trade.Price == nil {
		return false
	}
	copper := trade.Price.Copper()
	if minPrice != nil && copper < *minPrice {
		return false
	}
	if maxPrice != nil && copper > *maxPrice {
		return false
	}
	return true
}

// AlertService owns the rule list, persists it, and fires side effects on
// matches.
type AlertService struct {
	logger   *zap.Logger
	store    store.Storage
	notifier notifier.Notifier
	sound    sound.Player

	mu    sync.Mutex
	rules []TradeAlert
	fired []FiredAlert
}

func NewAlertService(logger *zap.Logger, st store.Storage, n notifier.Notifier, player sound.Player) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		logger:   logger,
		store:    st,
		notifier: n,
		sound:    player,
	}
}

// Load reads the persisted rule list, dropping rules that fail validation.
func (s *AlertService) Load(ctx context.Context) error {
	if !s.store.IsEnabled() {
		return nil
	}
	var stored []TradeAlert
	if err := s.store.LoadJSON(ctx, storageKeyAlerts, &stored); err != nil {
		return fmt.Errorf("failed to load alert rules: %w", err)
	}

	valid := make([]TradeAlert, 0, len(stored))
	for _, rule := range stored {
		if err := validateRule(rule); err != nil {
			s.logger.Warn("skipping invalid alert rule",
				zap.String("id", rule.ID),
				zap.Error(err))
			continue
		}
		valid = append(valid, rule)
	}

	s.mu.Lock()
	s.rules = valid
	s.mu.Unlock()
	s.logger.Info("alert rules loaded", zap.Int("count", len(valid)))
	return nil
}

func validateRule(rule TradeAlert) error {
	if rule.ID == "" {
		return fmt.Errorf("missing id")
	}
	if strings.TrimSpace(rule.Term) == "" {
		return fmt.Errorf("empty term")
	}
	if rule.MinPrice != nil && *rule.MinPrice < 0 {
		return fmt.Errorf("negative min price")
	}
	if rule.MaxPrice != nil && *rule.MaxPrice < 0 {
		return fmt.Errorf("negative max price")
	}
	if rule.MinPrice != nil && rule.MaxPrice != nil && *rule.MinPrice > *rule.MaxPrice {
		return fmt.Errorf("min price above max price")
	}
	for _, t := range rule.TradeTypes {
		if t != TradeTypeBuy && t != TradeTypeSell && t != TradeTypeTrade {
			return fmt.Errorf("unknown trade type %q", t)
		}
	}
	return nil
}

// Rules returns a snapshot of the current rule list.
func (s *AlertService) Rules() []TradeAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TradeAlert, len(s.rules))
	copy(out, s.rules)
	return out
}

// Add appends a rule. A missing ID is assigned.
func (s *AlertService) Add(ctx context.Context, rule TradeAlert) (TradeAlert, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := validateRule(rule); err != nil {
		return TradeAlert{}, fmt.Errorf("invalid alert rule: %w", err)
	}

	s.mu.Lock()
	s.rules = append(s.rules, rule)
	snapshot := make([]TradeAlert, len(s.rules))
	copy(snapshot, s.rules)
	s.mu.Unlock()

	return rule, s.persist(ctx, snapshot)
}

// Update replaces the rule with the same ID.
func (s *AlertService) Update(ctx context.Context, rule TradeAlert) error {
	if err := validateRule(rule); err != nil {
		return fmt.Errorf("invalid alert rule: %w", err)
	}

	s.mu.Lock()
	idx := lo.IndexOf(lo.Map(s.rules, func(r TradeAlert, _ int) string { return r.ID }), rule.ID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("alert rule %s not found", rule.ID)
	}
	s.rules[idx] = rule
	snapshot := make([]TradeAlert, len(s.rules))
	copy(snapshot, s.rules)
	s.mu.Unlock()

	return s.persist(ctx, snapshot)
}

// Delete removes the rule with the given ID.
func (s *AlertService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	before := len(s.rules)
	s.rules = lo.Filter(s.rules, func(r TradeAlert, _ int) bool { return r.ID != id })
	if len(s.rules) == before {
		s.mu.Unlock()
		return fmt.Errorf("alert rule %s not found", id)
	}
	snapshot := make([]TradeAlert, len(s.rules))
	copy(snapshot, s.rules)
	s.mu.Unlock()

	return s.persist(ctx, snapshot)
}

func (s *AlertService) persist(ctx context.Context, snapshot []TradeAlert) error {
	if !s.store.IsEnabled() {
		return nil
	}
	if err := s.store.SaveJSON(ctx, storageKeyAlerts, snapshot); err != nil {
		return fmt.Errorf("failed to persist alert rules: %w", err)
	}
	return nil
}

// Check evaluates a trade against the current rules.
func (s *AlertService) Check(trade *ParsedTrade) *TradeAlert {
	s.mu.Lock()
	rules := s.rules
	s.mu.Unlock()
	return CheckAlerts(trade, rules)
}

// Fire performs the alert side effects for a matched rule: one notification,
// one sound, one history record.
func (s *AlertService) Fire(rule *TradeAlert, trade *ParsedTrade) {
	body := fmt.Sprintf("%s: %s", trade.Nick, trade.Message)
	if trade.Price != nil {
		body = fmt.Sprintf("%s (%s)", body, money.FormatCopper(trade.Price.Copper()))
	}
	s.notifier.Notify("Trade alert: "+rule.Term, body)

	soundID := rule.Sound
	if soundID == "" {
		soundID = defaultSoundID
	}
	s.sound.Play(soundID)

	record := FiredAlert{
		ID:      uuid.NewString(),
		Term:    rule.Term,
		Trade:   *trade,
		FiredAt: time.Now(),
	}
	s.mu.Lock()
	s.fired = append(s.fired, record)
	if len(s.fired) > maxFiredHistory {
		s.fired = s.fired[len(s.fired)-maxFiredHistory:]
	}
	s.mu.Unlock()

	s.logger.Info("alert fired",
		zap.String("term", rule.Term),
		zap.String("nick", trade.Nick),
		zap.String("item", trade.Item))
}

// FiredHistory returns recent matches, newest last.
func (s *AlertService) FiredHistory() []FiredAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FiredAlert, len(s.fired))
	copy(out, s.fired)
	return out
}
