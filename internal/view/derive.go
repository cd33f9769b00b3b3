package view

import (
	"cmp"
	"slices"
	"strings"

	"crypto-explorer-bot/internal/model"
)

// PageSize is the number of rows on one listing page.
const PageSize = 10

// Page is the derived, render-ready slice of a ViewState.
type Page struct {
	Coins      []model.CoinSummary
	Number     int
	TotalPages int
	Matches    int
}

// Derive runs the full pipeline: sort, filter, paginate.
func Derive(s State) Page {
	filtered := FilterCoins(SortCoins(s.Coins, s.Sort), s.Search)
	return Page{
		Coins:      Paginate(filtered, s.Page),
		Number:     s.Page,
		TotalPages: TotalPages(len(filtered)),
		Matches:    len(filtered),
	}
}

// SortCoins returns a stably sorted copy of coins. A nil config keeps insertion order.
func SortCoins(coins []model.CoinSummary, sc *model.SortConfig) []model.CoinSummary {
	sorted := slices.Clone(coins)
	if sc == nil {
		return sorted
	}

	slices.SortStableFunc(sorted, func(a, b model.CoinSummary) int {
		c := compareBy(sc.Key, a, b)
		if sc.Direction == model.Descending {
			return -c
		}
		return c
	})
	return sorted
}

func compareBy(key model.SortKey, a, b model.CoinSummary) int {
	switch key {
	case model.SortByName:
		return strings.Compare(a.Name, b.Name)
	case model.SortBySymbol:
		return strings.Compare(a.Symbol, b.Symbol)
	case model.SortByPrice:
		return cmp.Compare(a.CurrentPrice, b.CurrentPrice)
	case model.SortByMarketCap:
		return cmp.Compare(a.MarketCap, b.MarketCap)
	case model.SortByVolume:
		return cmp.Compare(a.TotalVolume, b.TotalVolume)
	case model.SortByChange24h:
		return cmp.Compare(a.PriceChangePercentage24h, b.PriceChangePercentage24h)
	case model.SortByCirculatingSupply:
		return cmp.Compare(a.CirculatingSupply, b.CirculatingSupply)
	case model.SortByTotalSupply:
		// null supply orders as zero
		return cmp.Compare(deref(a.TotalSupply), deref(b.TotalSupply))
	default:
		return 0
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// FilterCoins keeps coins whose name contains the trimmed search text, ignoring case.
// Empty search text matches everything.
func FilterCoins(coins []model.CoinSummary, search string) []model.CoinSummary {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return slices.Clone(coins)
	}

	out := make([]model.CoinSummary, 0, len(coins))
	for _, c := range coins {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	return out
}

// Paginate returns the 1-based page of coins. Out-of-range pages are empty.
func Paginate(coins []model.CoinSummary, page int) []model.CoinSummary {
	start := (page - 1) * PageSize
	if page < 1 || start >= len(coins) {
		return []model.CoinSummary{}
	}
	end := min(start+PageSize, len(coins))
	return slices.Clone(coins[start:end])
}

// TotalPages is ceil(n / PageSize), never less than 1.
func TotalPages(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + PageSize - 1) / PageSize
}

// ClampPage bounds n to [1, max(1, total)].
func ClampPage(n, total int) int {
	return max(1, min(n, max(1, total)))
}
