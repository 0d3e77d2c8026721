package processor

import (
	"errors"
	"os"
	"testing"
	"time"

	"optionflow/models"
	"optionflow/reader"

	"github.com/shopspring/decimal"
)

func parseFixture(t *testing.T, name string) *Page {
	t.Helper()
	f, err := os.Open("../reader/testdata/" + name)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	doc, err := reader.Extract(f)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	page, err := Parse(doc, jst(2024, 3, 10, 0, 16))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return page
}

func TestParsePrimaryPage(t *testing.T) {
	page := parseFixture(t, "nkopm_primary.html")
	ref := jst(2024, 3, 10, 0, 15)

	if !page.CreatedAt.Equal(ref) {
		t.Fatalf("CreatedAt = %v", page.CreatedAt)
	}

	spot := page.Spot
	assertDecimal(t, "spot price", spot.Price.OrElse(decimal.Zero), spot.Price.IsSet(), "39688.94")
	// 15:15 on the reference date is later than 00:15, so it is yesterday's
	if pt, _ := spot.PriceTime.Get(); !pt.Equal(jst(2024, 3, 9, 15, 15)) {
		t.Errorf("spot price_time = %v", pt)
	}
	assertDecimal(t, "spot diff", spot.Diff.OrElse(decimal.Zero), spot.Diff.IsSet(), "90.94")
	assertDecimal(t, "spot hv", spot.HV.OrElse(decimal.Zero), spot.HV.IsSet(), "18.52")

	fut := page.Future
	assertDecimal(t, "future price", fut.Price.OrElse(decimal.Zero), fut.Price.IsSet(), "39610")
	if pt, _ := fut.PriceTime.Get(); !pt.Equal(jst(2024, 3, 9, 23, 58)) {
		t.Errorf("future price_time = %v", pt)
	}
	if fut.HV.IsSet() {
		t.Error("future hv should be absent")
	}
	if !fut.ContractMonth.Equal(jst(2024, 6, 1, 0, 0)) {
		t.Errorf("contract month = %v", fut.ContractMonth)
	}

	if len(page.Calls) != 2 || len(page.Puts) != 2 {
		t.Fatalf("calls/puts = %d/%d", len(page.Calls), len(page.Puts))
	}

	call := page.Calls[0]
	if call.Side != models.Call || call.Strike != 38500 || call.IsATM {
		t.Fatalf("first call = %+v", call)
	}
	assertDecimal(t, "call price", call.Price.OrElse(decimal.Zero), call.Price.IsSet(), "1275")
	if pt, _ := call.PriceTime.Get(); !pt.Equal(jst(2024, 3, 9, 23, 40)) {
		t.Errorf("call price_time = %v", pt)
	}
	assertDecimal(t, "call ask", call.Ask.OrElse(decimal.Zero), call.Ask.IsSet(), "1280")
	assertDecimal(t, "call ask iv", call.AskIV.OrElse(decimal.Zero), call.AskIV.IsSet(), "20.10")
	assertDecimal(t, "call settlement", call.SettlementPrice.OrElse(decimal.Zero), call.SettlementPrice.IsSet(), "1260")
	assertDecimal(t, "call delta", call.Delta.OrElse(decimal.Zero), call.Delta.IsSet(), "0.8512")
	if v, _ := call.OpenInterest.Get(); v != 1502 {
		t.Errorf("call open interest = %d", v)
	}
	if v, _ := call.Volume.Get(); v != 35 {
		t.Errorf("call volume = %d", v)
	}
	if !call.SettlementDate.Equal(jst(2024, 3, 8, 0, 0)) {
		t.Errorf("settlement date = %v", call.SettlementDate)
	}
	if !call.LastTradingDay.Equal(jst(2024, 4, 11, 0, 0)) {
		t.Errorf("last trading day = %v", call.LastTradingDay)
	}

	put := page.Puts[0]
	if put.Side != models.Put || put.Strike != 38500 {
		t.Fatalf("first put = %+v", put)
	}
	assertDecimal(t, "put price", put.Price.OrElse(decimal.Zero), put.Price.IsSet(), "95")
	assertDecimal(t, "put delta", put.Delta.OrElse(decimal.Zero), put.Delta.IsSet(), "-0.1488")
	if v, _ := put.OpenInterest.Get(); v != 8211 {
		t.Errorf("put open interest = %d", v)
	}

	atmCall, atmPut := page.Calls[1], page.Puts[1]
	if !atmCall.IsATM || !atmPut.IsATM || atmCall.Strike != 39500 {
		t.Fatalf("atm row not flagged on both sides: %v %v", atmCall.IsATM, atmPut.IsATM)
	}
	if atmCall.Price.IsSet() || atmCall.PriceTime.IsSet() || atmCall.Volume.IsSet() || atmCall.Diff.IsSet() {
		t.Error("absent call cells parsed as present")
	}
	if atmCall.AskIV.IsSet() || !atmCall.BidIV.IsSet() {
		t.Error("atm call order book iv presence wrong")
	}
	if pt, _ := atmPut.PriceTime.Get(); !pt.Equal(jst(2024, 3, 10, 0, 12)) {
		t.Errorf("atm put price_time = %v", pt)
	}
	if !atmPut.Diff.IsSet() || atmPut.DiffRate.IsSet() {
		t.Error("atm put diff halves should be independent")
	}
	if atmPut.Theta.IsSet() || atmPut.OpenInterest.IsSet() {
		t.Error("absent put cells parsed as present")
	}
}

func TestParseAbortsOnBadCell(t *testing.T) {
	f, err := os.Open("../reader/testdata/nkopm_primary.html")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := reader.Extract(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}

	doc.PriceRows[1][11] = "n/a"
	_, err = Parse(doc, time.Now())
	var fe *FieldParseError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FieldParseError", err)
	}
	if fe.Row != 1 || fe.Column != "put.iv" || fe.Value != "n/a" {
		t.Fatalf("error identity = %+v", fe)
	}
}

func TestParseRejectsColumnDrift(t *testing.T) {
	doc := &reader.Document{
		UpdatedAt:       "2024/03/10 00:15",
		Spot:            reader.SummaryRow{Label: "日経平均株価", Price: "-", Diff: "-", DiffRate: "-", HV: "-"},
		Future:          reader.SummaryRow{Label: "日経225先物 24年6月限", Price: "-", Diff: "-", DiffRate: "-", HV: "-"},
		SettlementLabel: "03/08",
		LastTradingDay:  "2024/04/11",
		PriceRows:       [][]string{make([]string, 18)},
		GreekRows:       [][]string{make([]string, 8)},
	}
	_, err := Parse(doc, time.Now())
	if !errors.Is(err, ErrFieldParse) {
		t.Fatalf("err = %v, want ErrFieldParse", err)
	}
}

func TestParseRejectsImpossibleSettlementDate(t *testing.T) {
	doc := &reader.Document{
		UpdatedAt:       "03/10 00:15",
		Spot:            reader.SummaryRow{Label: "日経平均株価", Price: "-", Diff: "-", DiffRate: "-", HV: "-"},
		Future:          reader.SummaryRow{Label: "日経225先物 24年6月限", Price: "-", Diff: "-", DiffRate: "-", HV: "-"},
		SettlementLabel: "02/31 清算値",
		LastTradingDay:  "2024/04/11",
	}
	_, err := Parse(doc, jst(2024, 3, 10, 0, 20))
	var fe *FieldParseError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FieldParseError", err)
	}
	if fe.Column != "settlement_date" {
		t.Fatalf("error column = %q", fe.Column)
	}
}

func TestParseSummaryOnlyAbsent(t *testing.T) {
	doc := &reader.Document{
		UpdatedAt:       "03/10 00:15",
		Spot:            reader.SummaryRow{Label: "日経平均株価", Price: "-", Diff: "-", DiffRate: "-", HV: "-"},
		Future:          reader.SummaryRow{Label: "日経225先物 24年6月限", Price: "-", Diff: "-", DiffRate: "-", HV: "-"},
		SettlementLabel: "03/08",
		LastTradingDay:  "2024/04/11",
	}
	page, err := Parse(doc, jst(2024, 3, 10, 0, 20))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if page.Future.Price.IsSet() || page.Future.PriceTime.IsSet() {
		t.Fatal("absent future price parsed as present")
	}
}
