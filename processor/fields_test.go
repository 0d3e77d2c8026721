package processor

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePriceTime(t *testing.T) {
	cases := []struct {
		cell      string
		price     string
		clock     Clock
		wantValue bool
	}{
		{"39688.94(03/08 15:15)", "39688.94", Clock{15, 15}, true},
		{"39,610(03/09 23:58)", "39610", Clock{23, 58}, true},
		{"1275 03/09 23:40", "1275", Clock{23, 40}, true},
		{"410 03/10 00:12", "410", Clock{0, 12}, true},
		{"-", "", Clock{}, false},
		{"", "", Clock{}, false},
	}

	for _, c := range cases {
		price, clock, err := ParsePriceTime(c.cell)
		if err != nil {
			t.Fatalf("ParsePriceTime(%q): %v", c.cell, err)
		}
		if price.IsSet() != c.wantValue || clock.IsSet() != c.wantValue {
			t.Fatalf("ParsePriceTime(%q) presence = %v/%v", c.cell, price.IsSet(), clock.IsSet())
		}
		if !c.wantValue {
			continue
		}
		p, _ := price.Get()
		if p.String() != c.price {
			t.Errorf("ParsePriceTime(%q) price = %s, want %s", c.cell, p, c.price)
		}
		if got, _ := clock.Get(); got != c.clock {
			t.Errorf("ParsePriceTime(%q) clock = %s, want %s", c.cell, got, c.clock)
		}
	}
}

func TestParsePriceTimeRejectsGarbage(t *testing.T) {
	for _, cell := range []string{
		"abc", "1275", "1275 25:00", "0", "--",
		"100(03/08 15:15", "100 03/08 15:15)", "1.2.3 03/08 15:15", "100 (03/08 15:15",
	} {
		if _, _, err := ParsePriceTime(cell); err == nil {
			t.Errorf("ParsePriceTime(%q) accepted", cell)
		}
	}
}

func TestParseDiff(t *testing.T) {
	cases := []struct {
		cell string
		diff string
		rate string
	}{
		{"+20 +1.59%", "20", "1.59"},
		{"-5 -5.00%", "-5", "-5"},
		{"+15 -%", "15", ""},
		{"- +0.10%", "", "0.1"},
		{"-", "", ""},
	}
	for _, c := range cases {
		diff, rate, err := ParseDiff(c.cell)
		if err != nil {
			t.Fatalf("ParseDiff(%q): %v", c.cell, err)
		}
		assertDecimal(t, "diff of "+c.cell, diff.OrElse(decimal.Zero), diff.IsSet(), c.diff)
		assertDecimal(t, "rate of "+c.cell, rate.OrElse(decimal.Zero), rate.IsSet(), c.rate)
	}

	for _, cell := range []string{"up 3", "-5.00%", "12%", "+1.5%", "+20+1.59%", "1.2.3 +1%"} {
		if _, _, err := ParseDiff(cell); err == nil {
			t.Errorf("ParseDiff(%q) accepted", cell)
		}
	}
}

func TestParseMonthDay(t *testing.T) {
	for _, c := range []struct {
		label string
		month int
		day   int
	}{
		{"03/08 清算値", 3, 8},
		{"12/31", 12, 31},
		{"02/29", 2, 29},
	} {
		month, day, err := ParseMonthDay(c.label)
		if err != nil {
			t.Fatalf("ParseMonthDay(%q): %v", c.label, err)
		}
		if month != c.month || day != c.day {
			t.Errorf("ParseMonthDay(%q) = %d/%d, want %d/%d", c.label, month, day, c.month, c.day)
		}
	}

	for _, label := range []string{"02/31", "04/31", "02/30", "13/01", "00/10", "03/00", "清算値"} {
		if _, _, err := ParseMonthDay(label); err == nil {
			t.Errorf("ParseMonthDay(%q) accepted", label)
		}
	}
}

func TestParseOrderBook(t *testing.T) {
	book, err := ParseOrderBook("1,280(5) 1,250(8)")
	if err != nil {
		t.Fatalf("ParseOrderBook: %v", err)
	}
	assertDecimal(t, "ask", book.Ask.OrElse(decimal.Zero), book.Ask.IsSet(), "1280")
	assertDecimal(t, "bid", book.Bid.OrElse(decimal.Zero), book.Bid.IsSet(), "1250")
	if v, _ := book.AskVolume.Get(); v != 5 {
		t.Errorf("ask volume = %d", v)
	}
	if v, _ := book.BidVolume.Get(); v != 8 {
		t.Errorf("bid volume = %d", v)
	}

	book, err = ParseOrderBook("-(-) 505(40)")
	if err != nil {
		t.Fatalf("ParseOrderBook: %v", err)
	}
	if book.Ask.IsSet() || book.AskVolume.IsSet() {
		t.Error("absent ask parsed as present")
	}
	if v, _ := book.BidVolume.Get(); v != 40 {
		t.Errorf("bid volume = %d", v)
	}

	if _, err := ParseOrderBook("1280 1250"); err == nil {
		t.Fatal("ParseOrderBook accepted a cell without volumes")
	}
}

func TestParseOrderBookIV(t *testing.T) {
	ask, bid, err := ParseOrderBookIV("20.10% 19.80%")
	if err != nil {
		t.Fatalf("ParseOrderBookIV: %v", err)
	}
	assertDecimal(t, "ask iv", ask.OrElse(decimal.Zero), ask.IsSet(), "20.1")
	assertDecimal(t, "bid iv", bid.OrElse(decimal.Zero), bid.IsSet(), "19.8")

	ask, bid, err = ParseOrderBookIV("- 17.40%")
	if err != nil {
		t.Fatalf("ParseOrderBookIV: %v", err)
	}
	if ask.IsSet() || !bid.IsSet() {
		t.Fatalf("presence = %v/%v, want false/true", ask.IsSet(), bid.IsSet())
	}

	// a blank slot must still be written as "-"
	for _, cell := range []string{"-", "", "20.10%"} {
		if _, _, err := ParseOrderBookIV(cell); err == nil {
			t.Errorf("ParseOrderBookIV(%q) accepted", cell)
		}
	}
}

func TestSentinelIsAbsentNotZero(t *testing.T) {
	d, err := ParseDecimal("-")
	if err != nil || d.IsSet() {
		t.Fatalf("ParseDecimal(-) = %v, %v", d, err)
	}
	p, err := ParsePercent("-")
	if err != nil || p.IsSet() {
		t.Fatalf("ParsePercent(-) = %v, %v", p, err)
	}
	i, err := ParseInt("-")
	if err != nil || i.IsSet() {
		t.Fatalf("ParseInt(-) = %v, %v", i, err)
	}

	zero, err := ParseDecimal("0")
	if err != nil || !zero.IsSet() {
		t.Fatalf("ParseDecimal(0) = %v, %v", zero, err)
	}
}

func TestParseNumbers(t *testing.T) {
	d, err := ParseDecimal("+90.94")
	if err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, "diff", d.OrElse(decimal.Zero), d.IsSet(), "90.94")

	p, err := ParsePercent("18.52%")
	if err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, "percent", p.OrElse(decimal.Zero), p.IsSet(), "18.52")

	i, err := ParseInt("8,211")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := i.Get(); v != 8211 {
		t.Fatalf("ParseInt = %d", v)
	}

	if _, err := ParseInt("1.5"); err == nil {
		t.Fatal("ParseInt accepted a fraction")
	}
	if _, err := ParseDecimal("n/a"); err == nil {
		t.Fatal("ParseDecimal accepted text")
	}
}

func TestParseStrike(t *testing.T) {
	strike, atm, err := ParseStrike("39500 A T M")
	if err != nil || strike != 39500 || !atm {
		t.Fatalf("ParseStrike = %d %v %v", strike, atm, err)
	}
	strike, atm, err = ParseStrike("38,500")
	if err != nil || strike != 38500 || atm {
		t.Fatalf("ParseStrike = %d %v %v", strike, atm, err)
	}
	if _, _, err := ParseStrike("A T M"); err == nil {
		t.Fatal("ParseStrike accepted a label without a price")
	}
}

func TestParseContractMonth(t *testing.T) {
	yy, m, err := ParseContractMonth("日経225先物 25年1月限")
	if err != nil || yy != 25 || m != 1 {
		t.Fatalf("ParseContractMonth = %d %d %v", yy, m, err)
	}
	if _, _, err := ParseContractMonth("日経225先物"); err == nil {
		t.Fatal("missing contract month accepted")
	}
}

func TestFieldParseErrorIs(t *testing.T) {
	var err error = &FieldParseError{Row: 3, Column: "call.iv", Value: "x"}
	if !errors.Is(err, ErrFieldParse) {
		t.Fatal("FieldParseError does not match ErrFieldParse")
	}
	var fe *FieldParseError
	if !errors.As(err, &fe) || fe.Row != 3 {
		t.Fatal("errors.As failed")
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, present bool, want string) {
	t.Helper()
	if want == "" {
		if present {
			t.Errorf("%s = %s, want absent", name, got)
		}
		return
	}
	if !present {
		t.Errorf("%s absent, want %s", name, want)
		return
	}
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}
