package marketdata

import "sort"

// Market describes one tracked market.
type Market struct {
	ID        string
	Symbol    string
	Name      string
	BasePrice float64
}

var defaultMarkets = []Market{
	{ID: "US_SPX", Symbol: "SPY", Name: "S&P 500", BasePrice: 4500},
	{ID: "US_IYY", Symbol: "DIA", Name: "Dow Jones", BasePrice: 38500},
	{ID: "US_CCMP", Symbol: "QQQ", Name: "Nasdaq", BasePrice: 14200},
	{ID: "EU_STOXX", Symbol: "EXS1.DE", Name: "STOXX Europe 600", BasePrice: 4300},
	{ID: "GB_FTSE", Symbol: "EUFX", Name: "FTSE 100", BasePrice: 7700},
	{ID: "JP_NIKKEI", Symbol: "0050.KL", Name: "Nikkei 225", BasePrice: 32500},
	{ID: "CN_SSE", Symbol: "YINN", Name: "Shanghai Composite", BasePrice: 3200},
	{ID: "IN_SENSEX", Symbol: "INDY", Name: "BSE Sensex", BasePrice: 72000},
	{ID: "BR_IBOV", Symbol: "EWZ", Name: "Bovespa", BasePrice: 130000},
	{ID: "KR_KOSPI", Symbol: "EWY", Name: "KOSPI", BasePrice: 2650},
	{ID: "RU_MOEX", Symbol: "RSX", Name: "MOEX Russia", BasePrice: 3000},
	{ID: "AU_ASX", Symbol: "EWA", Name: "ASX 200", BasePrice: 7400},
	{ID: "CH_SMI", Symbol: "EWL", Name: "SMI", BasePrice: 11200},
	{ID: "SG_STI", Symbol: "EWS", Name: "Straits Times", BasePrice: 3350},
	{ID: "MX_MEXBOL", Symbol: "EWW", Name: "IPC Mexico", BasePrice: 21000},
}

// Registry maps market ids to provider symbols.
type Registry struct {
	byID map[string]Market
}

// NewRegistry builds a registry from markets, or from the built-in list when
// none are given.
func NewRegistry(markets ...Market) *Registry {
	if len(markets) == 0 {
		markets = defaultMarkets
	}
	r := &Registry{byID: make(map[string]Market, len(markets))}
	for _, m := range markets {
		r.byID[m.ID] = m
	}
	return r
}

// Lookup returns the market with the given id.
func (r *Registry) Lookup(id string) (Market, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// IDs returns all market ids sorted.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
