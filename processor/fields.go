package processor

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"optionflow/models"

	"github.com/shopspring/decimal"
)

// ErrFieldParse is matched by every cell that fits none of its shapes.
var ErrFieldParse = errors.New("field parse error")

// FieldParseError identifies the cell that could not be parsed. Row is the
// strike row index, or -1 for the summary block.
type FieldParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *FieldParseError) Error() string {
	msg := fmt.Sprintf("field parse error: row %d column %s value %q", e.Row, e.Column, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FieldParseError) Unwrap() error { return e.Err }

func (e *FieldParseError) Is(target error) bool {
	return target == ErrFieldParse
}

// Clock is an unresolved HH:MM fragment.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

const absent = "-"

var (
	// 39688.94(03/08 15:15) in the summary block, 1275 03/09 23:40 in the
	// option table.
	summaryPricePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*\(\s*\d{2}/\d{2}\s+(\d{2}):(\d{2})\s*\)$`)
	tablePricePattern   = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s+\d{2}/\d{2}\s+(\d{2}):(\d{2})$`)
	// Both halves are required and separated by whitespace.
	diffPattern         = regexp.MustCompile(`^([+\-]?\d+(?:\.\d+)?|-)\s+([+\-]?\d+(?:\.\d+)?|-)%$`)
	orderBookPattern    = regexp.MustCompile(`^(\d+|-)\s*\((\d+|-)\)\s*(\d+|-)\s*\((\d+|-)\)$`)
	orderBookIVPattern  = regexp.MustCompile(`^(?:-|([\d.]+)%)\s*(?:-|([\d.]+)%)$`)
	contractMonthRegexp = regexp.MustCompile(`(\d+)年(\d+)月`)
	monthDayPattern     = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)
	strikePattern       = regexp.MustCompile(`\d+`)
)

var separators = strings.NewReplacer(",", "", "，", "")

func normalize(cell string) string {
	return strings.TrimSpace(separators.Replace(cell))
}

func isAbsent(cell string) bool {
	return cell == "" || cell == absent
}

// ParsePriceTime parses a price cell carrying the quote's HH:MM. The
// MM/DD part of the label is ignored.
func ParsePriceTime(cell string) (models.Opt[decimal.Decimal], models.Opt[Clock], error) {
	cell = normalize(cell)
	if isAbsent(cell) {
		return models.None[decimal.Decimal](), models.None[Clock](), nil
	}

	m := summaryPricePattern.FindStringSubmatch(cell)
	if m == nil {
		m = tablePricePattern.FindStringSubmatch(cell)
	}
	if m == nil {
		return models.None[decimal.Decimal](), models.None[Clock](), fmt.Errorf("not a price/time cell")
	}
	price, err := decimal.NewFromString(m[1])
	if err != nil {
		return models.None[decimal.Decimal](), models.None[Clock](), err
	}
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if hour > 23 || minute > 59 {
		return models.None[decimal.Decimal](), models.None[Clock](), fmt.Errorf("time %s:%s out of range", m[2], m[3])
	}
	return models.Some(price), models.Some(Clock{Hour: hour, Minute: minute}), nil
}

// ParseDiff parses "<diff> <rate>%". Each half may be "-" on its own.
func ParseDiff(cell string) (models.Opt[decimal.Decimal], models.Opt[decimal.Decimal], error) {
	cell = normalize(cell)
	if isAbsent(cell) {
		return models.None[decimal.Decimal](), models.None[decimal.Decimal](), nil
	}

	m := diffPattern.FindStringSubmatch(cell)
	if m == nil {
		return models.None[decimal.Decimal](), models.None[decimal.Decimal](), fmt.Errorf("not a diff cell")
	}
	diff, err := ParseDecimal(m[1])
	if err != nil {
		return models.None[decimal.Decimal](), models.None[decimal.Decimal](), err
	}
	rate, err := ParseDecimal(m[2])
	if err != nil {
		return models.None[decimal.Decimal](), models.None[decimal.Decimal](), err
	}
	return diff, rate, nil
}

// OrderBook is the best ask and bid with their sizes.
type OrderBook struct {
	Ask       models.Opt[decimal.Decimal]
	AskVolume models.Opt[int64]
	Bid       models.Opt[decimal.Decimal]
	BidVolume models.Opt[int64]
}

// ParseOrderBook parses "<ask>(<ask_vol>) <bid>(<bid_vol>)".
func ParseOrderBook(cell string) (OrderBook, error) {
	cell = normalize(cell)
	if isAbsent(cell) {
		return OrderBook{}, nil
	}

	m := orderBookPattern.FindStringSubmatch(cell)
	if m == nil {
		return OrderBook{}, fmt.Errorf("not an order book cell")
	}

	var (
		book OrderBook
		err  error
	)
	if book.Ask, err = ParseDecimal(m[1]); err != nil {
		return OrderBook{}, err
	}
	if book.AskVolume, err = ParseInt(m[2]); err != nil {
		return OrderBook{}, err
	}
	if book.Bid, err = ParseDecimal(m[3]); err != nil {
		return OrderBook{}, err
	}
	if book.BidVolume, err = ParseInt(m[4]); err != nil {
		return OrderBook{}, err
	}
	return book, nil
}

// ParseOrderBookIV parses the ask and bid implied volatilities. Both slots
// must be present, either as "<n>%" or "-".
func ParseOrderBookIV(cell string) (ask, bid models.Opt[decimal.Decimal], err error) {
	cell = normalize(cell)
	m := orderBookIVPattern.FindStringSubmatch(cell)
	if m == nil {
		return models.None[decimal.Decimal](), models.None[decimal.Decimal](), fmt.Errorf("not an order book IV cell")
	}
	if ask, err = ParseDecimal(m[1]); err != nil {
		return models.None[decimal.Decimal](), models.None[decimal.Decimal](), err
	}
	if bid, err = ParseDecimal(m[2]); err != nil {
		return models.None[decimal.Decimal](), models.None[decimal.Decimal](), err
	}
	return ask, bid, nil
}

// ParseDecimal parses a plain number; "-" and blank are absent.
func ParseDecimal(cell string) (models.Opt[decimal.Decimal], error) {
	cell = normalize(cell)
	if isAbsent(cell) {
		return models.None[decimal.Decimal](), nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(cell, "+"))
	if err != nil {
		return models.None[decimal.Decimal](), err
	}
	return models.Some(d), nil
}

// ParsePercent parses "<n>%" (the sign is optional) or "-".
func ParsePercent(cell string) (models.Opt[decimal.Decimal], error) {
	return ParseDecimal(strings.TrimSuffix(normalize(cell), "%"))
}

// ParseInt parses a whole number; "-" and blank are absent.
func ParseInt(cell string) (models.Opt[int64], error) {
	cell = normalize(cell)
	if isAbsent(cell) {
		return models.None[int64](), nil
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(cell, "+"), 10, 64)
	if err != nil {
		return models.None[int64](), err
	}
	return models.Some(v), nil
}

// ParseStrike returns the strike price and whether the row is marked at
// the money.
func ParseStrike(cell string) (int, bool, error) {
	cell = normalize(cell)
	digits := strikePattern.FindString(cell)
	if digits == "" {
		return 0, false, fmt.Errorf("no strike price")
	}
	strike, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false, err
	}
	atm := strings.Contains(strings.ReplaceAll(cell, " ", ""), "ATM")
	return strike, atm, nil
}

// ParseContractMonth parses "<yy>年<m>月" and returns the raw year and month.
func ParseContractMonth(label string) (int, int, error) {
	m := contractMonthRegexp.FindStringSubmatch(label)
	if m == nil {
		return 0, 0, fmt.Errorf("no contract month")
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month %d out of range", month)
	}
	return year, month, nil
}

// ParseMonthDay parses the first "MM/DD" in label.
func ParseMonthDay(label string) (int, int, error) {
	m := monthDayPattern.FindStringSubmatch(label)
	if m == nil {
		return 0, 0, fmt.Errorf("no MM/DD date")
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	// 2000 is a leap year so 02/29 survives; 02/31 or 04/31 roll over.
	d := time.Date(2000, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if month < 1 || month > 12 || d.Month() != time.Month(month) || d.Day() != day {
		return 0, 0, fmt.Errorf("date %s out of range", m[0])
	}
	return month, day, nil
}
