package reader

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page anchors.
const (
	selectorUpdateTime     = ".update-time dd"
	selectorSummaryRows    = "#priceInfo tr"
	selectorSettlementHead = ".price-info-header tr"
	selectorLastTradingDay = ".date-table.last-tradingday dd"
	selectorOptionScroll   = ".price-info-scroll"
	selectorPriceRows      = ".row-num"
	selectorGreekRows      = ".greek"

	spotLabel   = "日経平均株価"
	futureLabel = "先物"
)

// SummaryRow holds the five cells of a spot or future summary row.
type SummaryRow struct {
	Label    string
	Price    string
	Diff     string
	DiffRate string
	HV       string
}

// Document is the text content of one option price page. Cells are
// trimmed, whitespace runs collapsed and thousands separators removed;
// nothing is interpreted yet.
type Document struct {
	UpdatedAt       string
	Spot            SummaryRow
	Future          SummaryRow
	SettlementLabel string
	LastTradingDay  string
	PriceRows       [][]string
	GreekRows       [][]string
}

// Extract walks the page markup and returns its cell text. A missing
// anchor, or a price table whose row count differs from the Greeks table,
// yields a *MalformedDocumentError and no partial document.
func Extract(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	out := &Document{}

	out.UpdatedAt = cleanCell(doc.Find(selectorUpdateTime).First().Text())
	if out.UpdatedAt == "" {
		return nil, malformed("update time", "")
	}

	summary := doc.Find(selectorSummaryRows)
	if out.Spot, err = summaryRow(summary, spotLabel); err != nil {
		return nil, err
	}
	if out.Future, err = summaryRow(summary, futureLabel); err != nil {
		return nil, err
	}

	out.SettlementLabel = cleanCell(doc.Find(selectorSettlementHead).Eq(1).Find("th").Eq(0).Text())
	if out.SettlementLabel == "" {
		return nil, malformed("settlement date header", "")
	}

	out.LastTradingDay = cleanCell(doc.Find(selectorLastTradingDay).First().Text())
	if out.LastTradingDay == "" {
		return nil, malformed("last trading day", "")
	}

	scroll := doc.Find(selectorOptionScroll)
	if scroll.Length() == 0 {
		return nil, malformed("option table", "")
	}

	scroll.Find(selectorPriceRows).Each(func(_ int, row *goquery.Selection) {
		out.PriceRows = append(out.PriceRows, cells(row.Find("td")))
	})
	scroll.Find(selectorGreekRows).Each(func(_ int, row *goquery.Selection) {
		out.GreekRows = append(out.GreekRows, cells(row.Find("table td")))
	})

	if len(out.PriceRows) == 0 {
		return nil, malformed("option table", "no strike rows")
	}
	if len(out.PriceRows) != len(out.GreekRows) {
		return nil, malformed("option table",
			fmt.Sprintf("%d price rows but %d greek rows", len(out.PriceRows), len(out.GreekRows)))
	}

	return out, nil
}

func summaryRow(rows *goquery.Selection, label string) (SummaryRow, error) {
	row := rows.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Find("td").Eq(0).Text(), label)
	}).First()
	if row.Length() == 0 {
		return SummaryRow{}, malformed(label+" row", "")
	}

	td := cells(row.Find("td"))
	if len(td) < 5 {
		return SummaryRow{}, malformed(label+" row", fmt.Sprintf("%d cells, want 5", len(td)))
	}
	return SummaryRow{
		Label:    td[0],
		Price:    td[1],
		Diff:     td[2],
		DiffRate: td[3],
		HV:       td[4],
	}, nil
}

func cells(sel *goquery.Selection) []string {
	return sel.Map(func(_ int, s *goquery.Selection) string {
		return cleanCell(s.Text())
	})
}

var separatorReplacer = strings.NewReplacer(",", "", "，", "")

func cleanCell(s string) string {
	s = separatorReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
