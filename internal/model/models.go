// Package model defines the data models for the crypto explorer bot.
package model

import "time"

// CoinSummary is one row of the market listing, in the shape the markets endpoint returns it.
// TotalSupply is nil when the upstream reports null.
type CoinSummary struct {
	ID                       string   `json:"id"`
	Name                     string   `json:"name"`
	Symbol                   string   `json:"symbol"`
	Image                    string   `json:"image"`
	CurrentPrice             float64  `json:"current_price"`
	MarketCap                float64  `json:"market_cap"`
	TotalVolume              float64  `json:"total_volume"`
	PriceChangePercentage24h float64  `json:"price_change_percentage_24h"`
	CirculatingSupply        float64  `json:"circulating_supply"`
	TotalSupply              *float64 `json:"total_supply"`
}

// CoinDetail is the extended per-coin document shown in the detail view.
type CoinDetail struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol"`
	Image       DetailImage `json:"image"`
	Description DetailText  `json:"description"`
	MarketData  MarketData  `json:"market_data"`
}

// DetailImage holds the image URLs of a coin detail document.
type DetailImage struct {
	Large string `json:"large"`
}

// DetailText holds localized free text. Only English is consumed.
type DetailText struct {
	En string `json:"en"`
}

// CurrencyAmount is a per-currency amount; only USD is consumed.
type CurrencyAmount struct {
	USD float64 `json:"usd"`
}

// MarketData is the market block nested in a coin detail document.
type MarketData struct {
	CurrentPrice             CurrencyAmount `json:"current_price"`
	PriceChangePercentage24h float64        `json:"price_change_percentage_24h"`
	MarketCap                CurrencyAmount `json:"market_cap"`
	TotalVolume              CurrencyAmount `json:"total_volume"`
	CirculatingSupply        float64        `json:"circulating_supply"`
	TotalSupply              *float64       `json:"total_supply"`
}

// SortKey names a sortable CoinSummary field. Values match the upstream JSON field names.
type SortKey string

// Sortable listing fields.
const (
	SortByName              SortKey = "name"
	SortBySymbol            SortKey = "symbol"
	SortByPrice             SortKey = "current_price"
	SortByMarketCap         SortKey = "market_cap"
	SortByVolume            SortKey = "total_volume"
	SortByChange24h         SortKey = "price_change_percentage_24h"
	SortByCirculatingSupply SortKey = "circulating_supply"
	SortByTotalSupply       SortKey = "total_supply"
)

// SortKeys returns every sortable key in column order.
func SortKeys() []SortKey {
	return []SortKey{
		SortByName, SortBySymbol, SortByPrice, SortByChange24h,
		SortByMarketCap, SortByVolume, SortByCirculatingSupply, SortByTotalSupply,
	}
}

// Valid reports whether k is a sortable key.
func (k SortKey) Valid() bool {
	for _, key := range SortKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// SortDirection is the direction of an active sort.
type SortDirection string

const (
	Ascending  SortDirection = "ascending"
	Descending SortDirection = "descending"
)

// SortConfig is the active sort. A nil *SortConfig means insertion order.
type SortConfig struct {
	Key       SortKey
	Direction SortDirection
}

// GuessScore is a user's guessing game record, persisted for the leaderboard.
type GuessScore struct {
	UserID         int64     `db:"user_id"`
	Username       string    `db:"username"`
	CorrectGuesses int64     `db:"correct_guesses"`
	BestScore      int64     `db:"best_score"`
	UpdatedAt      time.Time `db:"updated_at"`
}
