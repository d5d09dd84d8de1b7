// Package detail parses the expanded detail panel of a calendar row.
package detail

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Spec is one labelled line of the panel, e.g. "Source" or "Why Traders Care".
type Spec struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HistoryEntry is one past release listed in the panel.
type HistoryEntry struct {
	Date     string `json:"date"`
	Actual   string `json:"actual,omitempty"`
	Forecast string `json:"forecast,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// Block is the structured content of a detail panel.
type Block struct {
	Specs   []Spec         `json:"specs,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`
}

// Empty reports whether nothing was extracted.
func (b Block) Empty() bool {
	return len(b.Specs) == 0 && len(b.History) == 0
}

// String serializes the block as compact JSON. An empty block yields "".
func (b Block) String() string {
	if b.Empty() {
		return ""
	}
	data, err := json.Marshal(b)
	if err != nil {
		return ""
	}
	return string(data)
}

// Decode reverses String.
func Decode(s string) (Block, error) {
	var b Block
	if strings.TrimSpace(s) == "" {
		return b, nil
	}
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return Block{}, fmt.Errorf("decoding detail block: %w", err)
	}
	return b, nil
}

// Parse extracts the specs and history tables from the panel's HTML.
func Parse(html string) (Block, error) {
	// Panels are table rows; wrap them so the parser keeps the row intact.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table>" + html + "</table>"))
	if err != nil {
		return Block{}, fmt.Errorf("parsing detail panel: %w", err)
	}

	var block Block
	doc.Find("table.calendarspecs tr").Each(func(i int, row *goquery.Selection) {
		name := clean(row.Find("td.calendarspecs__spec").Text())
		value := clean(row.Find("td.calendarspecs__specdescription").Text())
		if name == "" && value == "" {
			return
		}
		block.Specs = append(block.Specs, Spec{Name: name, Value: value})
	})

	doc.Find("table.calendarhistory tr").Each(func(i int, row *goquery.Selection) {
		date := clean(row.Find("td.calendarhistory__date").Text())
		if date == "" {
			return
		}
		block.History = append(block.History, HistoryEntry{
			Date:     date,
			Actual:   clean(row.Find("td.calendarhistory__actual").Text()),
			Forecast: clean(row.Find("td.calendarhistory__forecast").Text()),
			Previous: clean(row.Find("td.calendarhistory__previous").Text()),
		})
	})

	return block, nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
