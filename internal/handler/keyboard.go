package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"crypto-explorer-bot/internal/game/guess"
	"crypto-explorer-bot/internal/model"
	"crypto-explorer-bot/internal/view"
)

// Callback data prefixes, one per handler.
const (
	CoinsCallbackPrefix = "coins_"
	GuessCallbackPrefix = "guess_"
)

// Callback actions under CoinsCallbackPrefix.
const (
	ActionList    = "list"
	ActionDetail  = "detail"
	ActionSort    = "sort"
	ActionPage    = "page"
	ActionRefresh = "refresh"
	ActionNoop    = "noop"
)

// ActionReveal is the only action under GuessCallbackPrefix.
const ActionReveal = "reveal"

// sortColumn is a sortable listing column with its button label.
type sortColumn struct {
	Key   model.SortKey
	Label string
}

// sortColumns are the columns offered as sort buttons, in table order.
var sortColumns = []sortColumn{
	{model.SortByName, "Name"},
	{model.SortByPrice, "Price"},
	{model.SortByChange24h, "24h"},
	{model.SortByMarketCap, "Cap"},
	{model.SortByVolume, "Volume"},
	{model.SortByCirculatingSupply, "Supply"},
}

// EncodeCallback joins prefix, action and an optional parameter: coins_page_3.
func EncodeCallback(prefix, action, param string) string {
	if param != "" {
		return prefix + action + "_" + param
	}
	return prefix + action
}

// DecodeCallback splits callback data into action and parameter.
// Actions never contain '_', parameters may.
func DecodeCallback(prefix, data string) (action, param string) {
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, prefix) {
		return "", ""
	}
	action, param, _ = strings.Cut(strings.TrimPrefix(data, prefix), "_")
	return action, param
}

func coinsCallback(action, param string) string {
	return EncodeCallback(CoinsCallbackPrefix, action, param)
}

// sortIndicator shows the direction of key under the active sort.
func sortIndicator(key model.SortKey, sc *model.SortConfig) string {
	if sc == nil || sc.Key != key {
		return "⇅"
	}
	if sc.Direction == model.Ascending {
		return "▲"
	}
	return "▼"
}

// BuildListKeyboard builds the list view keyboard.
// Layout:
//   - one row per coin on the page, opening its detail view
//   - two rows of sort buttons
//   - [◀ Previous] [n / total] [Next ▶], disabled buttons omitted
//   - [🔄 Refresh]
func BuildListKeyboard(page view.Page, sc *model.SortConfig) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows [][]tele.InlineButton

	offset := (page.Number - 1) * view.PageSize
	for i, coin := range page.Coins {
		rows = append(rows, []tele.InlineButton{{
			Text: fmt.Sprintf("%d. %s (%s)", offset+i+1, coin.Name, strings.ToUpper(coin.Symbol)),
			Data: coinsCallback(ActionDetail, coin.ID),
		}})
	}

	var sortRow []tele.InlineButton
	for i, col := range sortColumns {
		sortRow = append(sortRow, tele.InlineButton{
			Text: col.Label + " " + sortIndicator(col.Key, sc),
			Data: coinsCallback(ActionSort, string(col.Key)),
		})
		if len(sortRow) == 3 || i == len(sortColumns)-1 {
			rows = append(rows, sortRow)
			sortRow = nil
		}
	}

	var nav []tele.InlineButton
	if page.Number > 1 {
		nav = append(nav, tele.InlineButton{Text: "◀ Previous", Data: coinsCallback(ActionPage, strconv.Itoa(page.Number-1))})
	}
	nav = append(nav, tele.InlineButton{
		Text: fmt.Sprintf("%d / %d", page.Number, page.TotalPages),
		Data: coinsCallback(ActionNoop, ""),
	})
	if page.Number < page.TotalPages {
		nav = append(nav, tele.InlineButton{Text: "Next ▶", Data: coinsCallback(ActionPage, strconv.Itoa(page.Number+1))})
	}
	rows = append(rows, nav)

	rows = append(rows, []tele.InlineButton{{Text: "🔄 Refresh", Data: coinsCallback(ActionRefresh, "")}})

	markup.InlineKeyboard = rows
	return markup
}

// BuildErrorKeyboard offers only a refresh, shown in place of the table.
func BuildErrorKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{{Text: "🔄 Refresh", Data: coinsCallback(ActionRefresh, "")}},
	}}
}

// BuildDetailKeyboard builds the back-link from a detail view to the list.
func BuildDetailKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{{Text: "← Back to list", Data: coinsCallback(ActionList, "")}},
	}}
}

// revealLabels are the reveal button labels per stage.
var revealLabels = map[guess.Stage]string{
	guess.Hidden:     "Show Answer",
	guess.Confirming: "Are you sure?",
}

// BuildRevealKeyboard builds the reveal button for stage. A revealed round has
// no button and returns nil.
func BuildRevealKeyboard(stage guess.Stage) *tele.ReplyMarkup {
	label, ok := revealLabels[stage]
	if !ok {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{{Text: label, Data: EncodeCallback(GuessCallbackPrefix, ActionReveal, "")}},
	}}
}
