package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Column encodings expected by the warehouse tables.
const (
	TimestampLayout = time.RFC3339          // TIMESTAMP, offset kept
	DateTimeLayout  = "2006-01-02T15:04:05" // DATETIME, naive JST
	DateLayout      = "2006-01-02"          // DATE
)

// SpotRow is the spot_price table row.
type SpotRow struct {
	Price     *json.Number `json:"price"`
	PriceTime *string      `json:"price_time"`
	Diff      *json.Number `json:"diff"`
	DiffRate  *json.Number `json:"diff_rate"`
	HV        *json.Number `json:"hv"`
	CreatedAt string       `json:"created_at"`
}

// FutureRow is the future_price table row. It is also the stored shape of
// the change-detection reference.
type FutureRow struct {
	Price         *json.Number `json:"price"`
	PriceTime     *string      `json:"price_time"`
	Diff          *json.Number `json:"diff"`
	DiffRate      *json.Number `json:"diff_rate"`
	HV            *json.Number `json:"hv"`
	ContractMonth string       `json:"contract_month"`
	CreatedAt     string       `json:"created_at"`
}

// OptionRow is the option_price table row.
type OptionRow struct {
	Type           int          `json:"type"`
	TargetPrice    int          `json:"target_price"`
	IsATM          bool         `json:"is_atm"`
	Price          *json.Number `json:"price"`
	PriceTime      *string      `json:"price_time"`
	Diff           *json.Number `json:"diff"`
	DiffRate       *json.Number `json:"diff_rate"`
	IV             *json.Number `json:"iv"`
	Bid            *json.Number `json:"bid"`
	BidVolume      *int64       `json:"bid_volume"`
	BidIV          *json.Number `json:"bid_iv"`
	Ask            *json.Number `json:"ask"`
	AskVolume      *int64       `json:"ask_volume"`
	AskIV          *json.Number `json:"ask_iv"`
	Volume         *int64       `json:"volume"`
	Positions      *int64       `json:"positions"`
	Quotation      *json.Number `json:"quotation"`
	QuotationDate  string       `json:"quotation_date"`
	Delta          *json.Number `json:"delta"`
	Gamma          *json.Number `json:"gamma"`
	Theta          *json.Number `json:"theta"`
	Vega           *json.Number `json:"vega"`
	LastTradingDay string       `json:"last_trading_day"`
	CreatedAt      string       `json:"created_at"`
}

func NewSpotRow(q SpotQuote) SpotRow {
	return SpotRow{
		Price:     number(q.Price),
		PriceTime: dateTime(q.PriceTime),
		Diff:      number(q.Diff),
		DiffRate:  number(q.DiffRate),
		HV:        number(q.HV),
		CreatedAt: timestamp(q.CreatedAt),
	}
}

func NewFutureRow(q FutureQuote) FutureRow {
	return FutureRow{
		Price:         number(q.Price),
		PriceTime:     dateTime(q.PriceTime),
		Diff:          number(q.Diff),
		DiffRate:      number(q.DiffRate),
		HV:            number(q.HV),
		ContractMonth: date(q.ContractMonth),
		CreatedAt:     timestamp(q.CreatedAt),
	}
}

func NewOptionRow(q OptionQuote) OptionRow {
	return OptionRow{
		Type:           int(q.Side),
		TargetPrice:    q.Strike,
		IsATM:          q.IsATM,
		Price:          number(q.Price),
		PriceTime:      dateTime(q.PriceTime),
		Diff:           number(q.Diff),
		DiffRate:       number(q.DiffRate),
		IV:             number(q.IV),
		Bid:            number(q.Bid),
		BidVolume:      integer(q.BidVolume),
		BidIV:          number(q.BidIV),
		Ask:            number(q.Ask),
		AskVolume:      integer(q.AskVolume),
		AskIV:          number(q.AskIV),
		Volume:         integer(q.Volume),
		Positions:      integer(q.OpenInterest),
		Quotation:      number(q.SettlementPrice),
		QuotationDate:  date(q.SettlementDate),
		Delta:          number(q.Delta),
		Gamma:          number(q.Gamma),
		Theta:          number(q.Theta),
		Vega:           number(q.Vega),
		LastTradingDay: date(q.LastTradingDay),
		CreatedAt:      timestamp(q.CreatedAt),
	}
}

// Quote decodes a stored future row.
func (r FutureRow) Quote() (FutureQuote, error) {
	var (
		q   FutureQuote
		err error
	)
	if q.Price, err = parseNumber("price", r.Price); err != nil {
		return FutureQuote{}, err
	}
	if q.PriceTime, err = parseDateTime("price_time", r.PriceTime); err != nil {
		return FutureQuote{}, err
	}
	if q.Diff, err = parseNumber("diff", r.Diff); err != nil {
		return FutureQuote{}, err
	}
	if q.DiffRate, err = parseNumber("diff_rate", r.DiffRate); err != nil {
		return FutureQuote{}, err
	}
	if q.HV, err = parseNumber("hv", r.HV); err != nil {
		return FutureQuote{}, err
	}
	if q.ContractMonth, err = time.ParseInLocation(DateLayout, r.ContractMonth, JST); err != nil {
		return FutureQuote{}, fmt.Errorf("contract_month: %w", err)
	}
	created, err := time.Parse(TimestampLayout, r.CreatedAt)
	if err != nil {
		return FutureQuote{}, fmt.Errorf("created_at: %w", err)
	}
	q.CreatedAt = created.In(JST)
	return q, nil
}

func number(o Opt[decimal.Decimal]) *json.Number {
	d, ok := o.Get()
	if !ok {
		return nil
	}
	n := json.Number(d.String())
	return &n
}

func integer(o Opt[int64]) *int64 {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}

func dateTime(o Opt[time.Time]) *string {
	t, ok := o.Get()
	if !ok {
		return nil
	}
	s := t.In(JST).Format(DateTimeLayout)
	return &s
}

func date(t time.Time) string {
	return t.In(JST).Format(DateLayout)
}

func timestamp(t time.Time) string {
	return t.In(JST).Format(TimestampLayout)
}

func parseNumber(field string, n *json.Number) (Opt[decimal.Decimal], error) {
	if n == nil {
		return None[decimal.Decimal](), nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return None[decimal.Decimal](), fmt.Errorf("%s: %w", field, err)
	}
	return Some(d), nil
}

func parseDateTime(field string, s *string) (Opt[time.Time], error) {
	if s == nil {
		return None[time.Time](), nil
	}
	t, err := time.ParseInLocation(DateTimeLayout, *s, JST)
	if err != nil {
		return None[time.Time](), fmt.Errorf("%s: %w", field, err)
	}
	return Some(t), nil
}
