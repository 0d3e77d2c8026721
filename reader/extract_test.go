package reader

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func loadFixture(t *testing.T, name string) *Document {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	doc, err := Extract(f)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return doc
}

func TestExtractPrimaryPage(t *testing.T) {
	doc := loadFixture(t, "nkopm_primary.html")

	if doc.UpdatedAt != "2024/03/10 00:15" {
		t.Errorf("UpdatedAt = %q", doc.UpdatedAt)
	}
	if doc.Spot.Price != "39688.94(03/08 15:15)" {
		t.Errorf("spot price cell = %q", doc.Spot.Price)
	}
	if doc.Spot.Diff != "+90.94" || doc.Spot.DiffRate != "+0.23%" || doc.Spot.HV != "18.52%" {
		t.Errorf("spot row = %+v", doc.Spot)
	}
	if !strings.Contains(doc.Future.Label, "24年6月") {
		t.Errorf("future label = %q", doc.Future.Label)
	}
	if doc.Future.Price != "39610(03/09 23:58)" || doc.Future.HV != "-" {
		t.Errorf("future row = %+v", doc.Future)
	}
	if doc.SettlementLabel != "03/08 清算値" {
		t.Errorf("SettlementLabel = %q", doc.SettlementLabel)
	}
	if doc.LastTradingDay != "2024/04/11" {
		t.Errorf("LastTradingDay = %q", doc.LastTradingDay)
	}

	if len(doc.PriceRows) != 2 || len(doc.GreekRows) != 2 {
		t.Fatalf("rows = %d/%d, want 2/2", len(doc.PriceRows), len(doc.GreekRows))
	}
	row := doc.PriceRows[0]
	if len(row) != 17 {
		t.Fatalf("price row has %d cells", len(row))
	}
	if row[4] != "1280(5) 1250(8)" {
		t.Errorf("order book cell not normalised: %q", row[4])
	}
	if row[7] != "1275 03/09 23:40" {
		t.Errorf("call price cell = %q", row[7])
	}
	if row[8] != "38500" || row[16] != "100" {
		t.Errorf("strike/settlement = %q/%q", row[8], row[16])
	}
	if got := doc.PriceRows[1][8]; got != "39500 A T M" {
		t.Errorf("atm strike cell = %q", got)
	}
	if g := doc.GreekRows[1]; len(g) != 8 || g[6] != "-" {
		t.Errorf("greek row = %v", g)
	}
}

func TestExtractMalformed(t *testing.T) {
	page, err := os.ReadFile("testdata/nkopm_primary.html")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	html := string(page)

	cases := []struct {
		name   string
		mutate func(string) string
	}{
		{"no update time", func(s string) string { return strings.Replace(s, `class="update-time"`, `class="x"`, 1) }},
		{"no spot row", func(s string) string { return strings.Replace(s, "日経平均株価", "TOPIX", 1) }},
		{"no future row", func(s string) string { return strings.Replace(s, "日経225先物", "日経225ミニ", 1) }},
		{"no last trading day", func(s string) string { return strings.Replace(s, "last-tradingday", "other", 1) }},
		{"no settlement header", func(s string) string { return strings.Replace(s, "price-info-header", "other", 1) }},
		{"greek rows missing", func(s string) string { return strings.Replace(s, `class="greek"`, `class="x"`, 1) }},
		{"no option table", func(s string) string { return strings.Replace(s, "price-info-scroll", "other", 1) }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Extract(strings.NewReader(c.mutate(html)))
			if !errors.Is(err, ErrMalformedDocument) {
				t.Fatalf("err = %v, want ErrMalformedDocument", err)
			}
			var me *MalformedDocumentError
			if !errors.As(err, &me) || me.Anchor == "" {
				t.Fatalf("error does not name the anchor: %v", err)
			}
		})
	}
}

func TestCleanCell(t *testing.T) {
	cases := map[string]string{
		"  1,234  ":          "1234",
		"12，345":             "12345",
		"95\n   03/09 23:55": "95 03/09 23:55",
		"-":                  "-",
		"\t":                 "",
	}
	for in, want := range cases {
		if got := cleanCell(in); got != want {
			t.Errorf("cleanCell(%q) = %q, want %q", in, got, want)
		}
	}
}
