package handler

import (
	"fmt"
	"strings"

	"crypto-explorer-bot/internal/game/guess"
	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/pkg/format"
	"crypto-explorer-bot/internal/view"
)

// User-facing texts.
const (
	LoadingText        = "⏳ Loading..."
	DetailErrorMessage = "Failed to fetch coin data. Please try again later."
	NoDetailMessage    = "No coin data available."
	InternalError      = "❌ Something went wrong, please try again later."
	separator          = "━━━━━━━━━━━━━━━"
)

// aboutLimit keeps a detail message well under Telegram's 4096 character cap.
const aboutLimit = 2500

func sortLabel(key model.SortKey) string {
	for _, col := range sortColumns {
		if col.Key == key {
			return col.Label
		}
	}
	return string(key)
}

func changeMarker(pct float64) string {
	if pct > 0 {
		return "🟢"
	}
	return "🔴"
}

// FormatListMessage renders the list view. An error replaces the table.
func FormatListMessage(st view.State, page view.Page) string {
	if st.Error != "" {
		return "❌ " + st.Error
	}
	if st.Loading {
		return LoadingText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📈 Cryptocurrency Prices | page %d / %d\n", page.Number, page.TotalPages)
	if sc := st.Sort; sc != nil {
		fmt.Fprintf(&b, "Sorted by %s %s\n", sortLabel(sc.Key), sortIndicator(sc.Key, sc))
	}
	if strings.TrimSpace(st.Search) != "" {
		fmt.Fprintf(&b, "🔍 \"%s\": %d matches\n", st.Search, page.Matches)
	}
	b.WriteString(separator + "\n")

	if len(page.Coins) == 0 {
		if page.Matches == 0 && len(st.Coins) > 0 {
			b.WriteString("No coins match your search.\n")
		} else {
			b.WriteString("Nothing to show on this page.\n")
		}
		b.WriteString(separator)
		return b.String()
	}

	offset := (page.Number - 1) * view.PageSize
	for i, c := range page.Coins {
		symbol := strings.ToUpper(c.Symbol)
		fmt.Fprintf(&b, "%d. %s (%s)\n", offset+i+1, c.Name, symbol)
		fmt.Fprintf(&b, "   %s | %s %s\n", format.USD(c.CurrentPrice), changeMarker(c.PriceChangePercentage24h), format.Percent(c.PriceChangePercentage24h))
		fmt.Fprintf(&b, "   Cap %s | Vol %s\n", format.USD(c.MarketCap), format.USD(c.TotalVolume))
		fmt.Fprintf(&b, "   Supply %s %s\n", format.Number(c.CirculatingSupply), symbol)
	}
	b.WriteString(separator)
	return b.String()
}

// FormatDetailMessage renders one coin's detail document.
func FormatDetailMessage(d *model.CoinDetail) string {
	md := d.MarketData
	symbol := strings.ToUpper(d.Symbol)

	var b strings.Builder
	fmt.Fprintf(&b, "🪙 %s (%s)\n", d.Name, symbol)
	if d.Image.Large != "" {
		b.WriteString(d.Image.Large + "\n")
	}
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "💵 Price: %s\n", format.USD(md.CurrentPrice.USD))
	fmt.Fprintf(&b, "%s 24h: %s\n", changeMarker(md.PriceChangePercentage24h), format.Percent(md.PriceChangePercentage24h))
	fmt.Fprintf(&b, "🏦 Market Cap: %s\n", format.USD(md.MarketCap.USD))
	fmt.Fprintf(&b, "📊 Volume (24h): %s\n", format.USD(md.TotalVolume.USD))
	fmt.Fprintf(&b, "🔄 Circulating Supply: %s %s\n", format.Number(md.CirculatingSupply), symbol)
	if md.TotalSupply != nil {
		fmt.Fprintf(&b, "📦 Total Supply: %s %s\n", format.Number(*md.TotalSupply), symbol)
	}

	if about := format.PlainText(d.Description.En); about != "" {
		b.WriteString(separator + "\n")
		fmt.Fprintf(&b, "About %s\n", d.Name)
		b.WriteString(format.Truncate(about, aboutLimit))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatGameMessage renders the guessing game panel.
func FormatGameMessage(s guess.Snapshot) string {
	if s.Coin == nil {
		return guess.LoadingMessage
	}

	var b strings.Builder
	b.WriteString("🎯 Crypto Guessing Game\n")
	b.WriteString("Can you guess the cryptocurrency based on the hint?\n")
	fmt.Fprintf(&b, "Score: %d\n", s.Score)
	b.WriteString(separator + "\n")
	b.WriteString(guess.HintFor(*s.Coin) + "\n")
	b.WriteString("Reply with /guess <name>.")
	if s.Feedback != "" {
		b.WriteString("\n\n" + s.Feedback)
	}
	return b.String()
}

// FormatLeaderboard renders the top guessers.
func FormatLeaderboard(scores []*model.GuessScore) string {
	msg := "🏆 Top Guessers\n"
	msg += separator + "\n"

	if len(scores) == 0 {
		msg += "No correct guesses yet.\n"
	} else {
		medals := []string{"🥇", "🥈", "🥉"}
		for i, s := range scores {
			rank := fmt.Sprintf("%d.", i+1)
			if i < len(medals) {
				rank = medals[i]
			}
			msg += fmt.Sprintf("%s %s: %d correct, best score %d\n", rank, displayName(s.Username, s.UserID), s.CorrectGuesses, s.BestScore)
		}
	}

	msg += separator
	return msg
}

func displayName(username string, userID int64) string {
	if username == "" {
		return fmt.Sprintf("User%d", userID)
	}
	return username
}
