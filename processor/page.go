package processor

import (
	"fmt"
	"time"

	"optionflow/models"
	"optionflow/reader"

	"github.com/shopspring/decimal"
)

const summaryRow = -1

// Page is one parsed option price page with every time resolved against
// its update label.
type Page struct {
	Spot      models.SpotQuote
	Future    models.FutureQuote
	Calls     []models.OptionQuote
	Puts      []models.OptionQuote
	CreatedAt time.Time
}

// Parse converts an extracted document into typed quotes. now is the wall
// clock used only when the update label carries no year. The first cell
// that fits none of its shapes aborts the page with a *FieldParseError.
func Parse(doc *reader.Document, now time.Time) (*Page, error) {
	ref, err := ParseUpdatedAt(doc.UpdatedAt, now)
	if err != nil {
		return nil, fieldError(summaryRow, "updated_at", doc.UpdatedAt, err)
	}
	rec := NewReconciler(ref)

	page := &Page{CreatedAt: rec.Reference()}

	if page.Spot, err = parseSpot(rec, doc.Spot); err != nil {
		return nil, err
	}
	if page.Future, err = parseFuture(rec, doc.Future); err != nil {
		return nil, err
	}

	month, day, err := ParseMonthDay(doc.SettlementLabel)
	if err != nil {
		return nil, fieldError(summaryRow, "settlement_date", doc.SettlementLabel, err)
	}
	settlement := rec.SettlementDate(month, day)

	lastTradingDay, err := LastTradingDay(doc.LastTradingDay)
	if err != nil {
		return nil, fieldError(summaryRow, "last_trading_day", doc.LastTradingDay, err)
	}

	page.Calls = make([]models.OptionQuote, 0, len(doc.PriceRows))
	page.Puts = make([]models.OptionQuote, 0, len(doc.PriceRows))

	for i := range doc.PriceRows {
		prices, err := destructurePriceRow(i, doc.PriceRows[i])
		if err != nil {
			return nil, err
		}
		if i >= len(doc.GreekRows) {
			return nil, fieldError(i, "greek_row", "", fmt.Errorf("missing greek row"))
		}
		greeks, err := destructureGreekRow(i, doc.GreekRows[i])
		if err != nil {
			return nil, err
		}

		strike, atm, err := ParseStrike(prices.Strike)
		if err != nil {
			return nil, fieldError(i, "strike", prices.Strike, err)
		}

		for _, side := range models.Sides {
			q, err := parseOption(rec, i, side, prices.side(side), greeks.side(side))
			if err != nil {
				return nil, err
			}
			q.Strike = strike
			q.IsATM = atm
			q.SettlementDate = settlement
			q.LastTradingDay = lastTradingDay
			q.CreatedAt = page.CreatedAt

			if side == models.Call {
				page.Calls = append(page.Calls, q)
			} else {
				page.Puts = append(page.Puts, q)
			}
		}
	}

	return page, nil
}

func parseSpot(rec Reconciler, row reader.SummaryRow) (models.SpotQuote, error) {
	price, priceTime, diff, rate, hv, err := parseSummary(rec, row, "spot")
	if err != nil {
		return models.SpotQuote{}, err
	}
	return models.SpotQuote{
		Price:     price,
		PriceTime: priceTime,
		Diff:      diff,
		DiffRate:  rate,
		HV:        hv,
		CreatedAt: rec.Reference(),
	}, nil
}

func parseFuture(rec Reconciler, row reader.SummaryRow) (models.FutureQuote, error) {
	price, priceTime, diff, rate, hv, err := parseSummary(rec, row, "future")
	if err != nil {
		return models.FutureQuote{}, err
	}
	yy, month, err := ParseContractMonth(row.Label)
	if err != nil {
		return models.FutureQuote{}, fieldError(summaryRow, "future.contract_month", row.Label, err)
	}
	return models.FutureQuote{
		Price:         price,
		PriceTime:     priceTime,
		Diff:          diff,
		DiffRate:      rate,
		HV:            hv,
		ContractMonth: rec.ContractMonth(yy, month),
		CreatedAt:     rec.Reference(),
	}, nil
}

type decimalOpt = models.Opt[decimal.Decimal]

func parseSummary(rec Reconciler, row reader.SummaryRow, name string) (price decimalOpt, priceTime models.Opt[time.Time], diff, rate, hv decimalOpt, err error) {
	price, clock, err := ParsePriceTime(row.Price)
	if err != nil {
		err = fieldError(summaryRow, name+".price", row.Price, err)
		return
	}
	priceTime = rec.IntradayOpt(clock)

	if diff, err = ParseDecimal(row.Diff); err != nil {
		err = fieldError(summaryRow, name+".diff", row.Diff, err)
		return
	}
	if rate, err = ParsePercent(row.DiffRate); err != nil {
		err = fieldError(summaryRow, name+".diff_rate", row.DiffRate, err)
		return
	}
	if hv, err = ParsePercent(row.HV); err != nil {
		err = fieldError(summaryRow, name+".hv", row.HV, err)
		return
	}
	return
}

// parseOption applies the same rules to either side of a strike row.
func parseOption(rec Reconciler, row int, side models.OptionSide, c sideCells, g greekCells) (models.OptionQuote, error) {
	q := models.OptionQuote{Side: side}
	col := func(name string) string { return side.String() + "." + name }

	price, clock, err := ParsePriceTime(c.Price)
	if err != nil {
		return q, fieldError(row, col("price"), c.Price, err)
	}
	q.Price = price
	q.PriceTime = rec.IntradayOpt(clock)

	if q.Diff, q.DiffRate, err = ParseDiff(c.Diff); err != nil {
		return q, fieldError(row, col("diff"), c.Diff, err)
	}
	if q.IV, err = ParsePercent(c.IV); err != nil {
		return q, fieldError(row, col("iv"), c.IV, err)
	}

	book, err := ParseOrderBook(c.OrderBook)
	if err != nil {
		return q, fieldError(row, col("order_book"), c.OrderBook, err)
	}
	q.Ask, q.AskVolume, q.Bid, q.BidVolume = book.Ask, book.AskVolume, book.Bid, book.BidVolume

	if q.AskIV, q.BidIV, err = ParseOrderBookIV(c.OrderBookIV); err != nil {
		return q, fieldError(row, col("order_book_iv"), c.OrderBookIV, err)
	}
	if q.Volume, err = ParseInt(c.Volume); err != nil {
		return q, fieldError(row, col("volume"), c.Volume, err)
	}
	if q.OpenInterest, err = ParseInt(c.OpenInterest); err != nil {
		return q, fieldError(row, col("open_interest"), c.OpenInterest, err)
	}
	if q.SettlementPrice, err = ParseDecimal(c.Settlement); err != nil {
		return q, fieldError(row, col("settlement"), c.Settlement, err)
	}

	if q.Delta, err = ParseDecimal(g.Delta); err != nil {
		return q, fieldError(row, col("delta"), g.Delta, err)
	}
	if q.Gamma, err = ParseDecimal(g.Gamma); err != nil {
		return q, fieldError(row, col("gamma"), g.Gamma, err)
	}
	if q.Theta, err = ParseDecimal(g.Theta); err != nil {
		return q, fieldError(row, col("theta"), g.Theta, err)
	}
	if q.Vega, err = ParseDecimal(g.Vega); err != nil {
		return q, fieldError(row, col("vega"), g.Vega, err)
	}

	return q, nil
}

func fieldError(row int, column, value string, err error) error {
	return &FieldParseError{Row: row, Column: column, Value: value, Err: err}
}
