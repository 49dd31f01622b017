package app

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"tradewatch/internal/money"
)

func int64Ptr(v int64) *int64 { return &v }

func candidate(msg string, tradeType TradeType, priceCopper int64) *ParsedTrade {
	trade := &ParsedTrade{Nick: "Aldur", Message: msg, Type: tradeType}
	if priceCopper >= 0 {
		trade.Price = money.FromCopperOrNil(priceCopper)
	}
	return trade
}

func TestCheckAlertsKeywordMatch(t *testing.T) {
	rules := []TradeAlert{{ID: "1", Term: "Casket", Enabled: true}}

	if CheckAlerts(candidate("WTS Sword", TradeTypeSell, -1), rules) != nil {
		t.Error("'WTS Sword' must not match term 'Casket'")
	}
	if CheckAlerts(candidate("wts casket", TradeTypeSell, -1), rules) == nil {
		t.Error("keyword match must be case-insensitive")
	}
}

func TestCheckAlertsMultiWordTerm(t *testing.T) {
	rules := []TradeAlert{{ID: "1", Term: "rare casket", Enabled: true}}

	if CheckAlerts(candidate("WTS casket, slightly used", TradeTypeSell, -1), rules) != nil {
		t.Error("every term word must appear")
	}
	if CheckAlerts(candidate("WTS casket, rare find!", TradeTypeSell, -1), rules) == nil {
		t.Error("word order must not matter")
	}
}

func TestCheckAlertsDisabledRule(t *testing.T) {
	rules := []TradeAlert{{ID: "1", Term: "casket", Enabled: false}}
	if CheckAlerts(candidate("WTS casket", TradeTypeSell, -1), rules) != nil {
		t.Error("disabled rules must never match")
	}
}

func TestCheckAlertsTradeTypeFilter(t *testing.T) {
	rules := []TradeAlert{{
		ID: "1", Term: "casket", Enabled: true,
		TradeTypes: []TradeType{TradeTypeSell},
	}}

	if CheckAlerts(candidate("WTB casket", TradeTypeBuy, -1), rules) != nil {
		t.Error("WTB must not match a WTS-only rule")
	}
	if CheckAlerts(candidate("casket here", TradeTypeNone, -1), rules) != nil {
		t.Error("a candidate without a direction must not match a typed rule")
	}
	if CheckAlerts(candidate("WTS casket", TradeTypeSell, -1), rules) == nil {
		t.Error("WTS must match a WTS-only rule")
	}

	anyDirection := []TradeAlert{{ID: "1", Term: "casket", Enabled: true}}
	if CheckAlerts(candidate("WTB casket", TradeTypeBuy, -1), anyDirection) == nil {
		t.Error("an empty type set must match any direction")
	}
}

func TestCheckAlertsPriceBounds(t *testing.T) {
	rules := []TradeAlert{{
		ID: "1", Term: "casket", Enabled: true,
		MaxPrice: int64Ptr(10000),
	}}

	if CheckAlerts(candidate("WTS casket 1g", TradeTypeSell, 10000), rules) == nil {
		t.Error("price equal to max must match (inclusive bound)")
	}
	if CheckAlerts(candidate("WTS casket", TradeTypeSell, 10001), rules) != nil {
		t.Error("price above max must not match")
	}
	if CheckAlerts(candidate("WTS casket", TradeTypeSell, -1), rules) != nil {
		t.Error("a candidate without a price must not match a bounded rule")
	}

	banded := []TradeAlert{{
		ID: "1", Term: "casket", Enabled: true,
		MinPrice: int64Ptr(5000), MaxPrice: int64Ptr(10000),
	}}
	if CheckAlerts(candidate("WTS casket", TradeTypeSell, 4999), banded) != nil {
		t.Error("price below min must not match")
	}
	if CheckAlerts(candidate("WTS casket", TradeTypeSell, 5000), banded) == nil {
		t.Error("price equal to min must match (inclusive bound)")
	}
}

func TestCheckAlertsFirstMatchWins(t *testing.T) {
	rules := []TradeAlert{
		{ID: "first", Term: "casket", Enabled: true},
		{ID: "second", Term: "casket", Enabled: true},
	}
	match := CheckAlerts(candidate("WTS casket", TradeTypeSell, -1), rules)
	if match == nil || match.ID != "first" {
		t.Fatalf("match = %v, want rule 'first'", match)
	}
}

func TestAlertServiceLoadSkipsInvalidRules(t *testing.T) {
	st := NewMockStorage()
	ctx := context.Background()
	stored := []TradeAlert{
		{ID: "good", Term: "casket", Enabled: true},
		{ID: "", Term: "no id", Enabled: true},
		{ID: "blank", Term: "   ", Enabled: true},
		{ID: "inverted", Term: "x", MinPrice: int64Ptr(100), MaxPrice: int64Ptr(50), Enabled: true},
		{ID: "badtype", Term: "x", TradeTypes: []TradeType{"SELLING"}, Enabled: true},
	}
	if err := st.SaveJSON(ctx, storageKeyAlerts, stored); err != nil {
		t.Fatal(err)
	}

	svc := NewAlertService(zap.NewNop(), st, &MockNotifier{}, &MockSound{})
	if err := svc.Load(ctx); err != nil {
		t.Fatal(err)
	}
	rules := svc.Rules()
	if len(rules) != 1 || rules[0].ID != "good" {
		t.Fatalf("rules = %v, want only 'good'", rules)
	}
}

func TestAlertServiceCRUDPersists(t *testing.T) {
	st := NewMockStorage()
	ctx := context.Background()
	svc := NewAlertService(zap.NewNop(), st, &MockNotifier{}, &MockSound{})

	added, err := svc.Add(ctx, TradeAlert{Term: "casket", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if added.ID == "" {
		t.Fatal("Add must assign an ID")
	}

	added.Term = "rare casket"
	if err := svc.Update(ctx, added); err != nil {
		t.Fatal(err)
	}
	if got := svc.Rules()[0].Term; got != "rare casket" {
		t.Fatalf("term after update = %q", got)
	}
	if !strings.Contains(st.GetContent(storageKeyAlerts), "rare casket") {
		t.Error("update must persist to the store")
	}

	if err := svc.Delete(ctx, added.ID); err != nil {
		t.Fatal(err)
	}
	if len(svc.Rules()) != 0 {
		t.Error("delete must remove the rule")
	}
	if err := svc.Delete(ctx, "missing"); err == nil {
		t.Error("deleting an unknown rule must error")
	}
}

func TestAlertServiceFire(t *testing.T) {
	st := NewMockStorage()
	n := &MockNotifier{}
	snd := &MockSound{}
	svc := NewAlertService(zap.NewNop(), st, n, snd)

	price, _ := money.FromCopper(15005)
	trade := &ParsedTrade{Nick: "Aldur", Message: "WTS casket 1g 50s 5c", Price: &price}
	rule := &TradeAlert{ID: "1", Term: "casket", Sound: "chime", Enabled: true}

	svc.Fire(rule, trade)

	notes := n.Notifications()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0][0] != "Trade alert: casket" {
		t.Errorf("title = %q", notes[0][0])
	}
	if notes[0][1] != "Aldur: WTS casket 1g 50s 5c (1g 50s 5c)" {
		t.Errorf("body = %q", notes[0][1])
	}
	if played := snd.Played(); len(played) != 1 || played[0] != "chime" {
		t.Errorf("played = %v, want [chime]", played)
	}
	if hist := svc.FiredHistory(); len(hist) != 1 || hist[0].Term != "casket" {
		t.Errorf("history = %v", hist)
	}
}

func TestAlertServiceFireDefaultSound(t *testing.T) {
	snd := &MockSound{}
	svc := NewAlertService(zap.NewNop(), NewMockStorage(), &MockNotifier{}, snd)
	svc.Fire(&TradeAlert{ID: "1", Term: "casket"}, &ParsedTrade{Nick: "x", Message: "WTS casket"})
	if played := snd.Played(); len(played) != 1 || played[0] != defaultSoundID {
		t.Errorf("played = %v, want [%s]", played, defaultSoundID)
	}
}
