package processor

import (
	"fmt"

	"optionflow/models"
)

const (
	priceRowCells = 17
	greekRowCells = 8
)

// sideCells are the eight quote cells of one option side. The call side
// runs right to left from the strike column, the put side left to right.
type sideCells struct {
	Price        string
	Diff         string
	IV           string
	OrderBook    string
	OrderBookIV  string
	Volume       string
	OpenInterest string
	Settlement   string
}

type priceRow struct {
	Call   sideCells
	Strike string
	Put    sideCells
}

func newPriceRow(c [priceRowCells]string) priceRow {
	return priceRow{
		Call: sideCells{
			Price:        c[7],
			Diff:         c[6],
			IV:           c[5],
			OrderBook:    c[4],
			OrderBookIV:  c[3],
			Volume:       c[2],
			OpenInterest: c[1],
			Settlement:   c[0],
		},
		Strike: c[8],
		Put: sideCells{
			Price:        c[9],
			Diff:         c[10],
			IV:           c[11],
			OrderBook:    c[12],
			OrderBookIV:  c[13],
			Volume:       c[14],
			OpenInterest: c[15],
			Settlement:   c[16],
		},
	}
}

func (r priceRow) side(s models.OptionSide) sideCells {
	if s == models.Put {
		return r.Put
	}
	return r.Call
}

type greekCells struct {
	Delta string
	Gamma string
	Theta string
	Vega  string
}

type greekRow struct {
	Call greekCells
	Put  greekCells
}

func newGreekRow(c [greekRowCells]string) greekRow {
	return greekRow{
		Call: greekCells{Delta: c[0], Gamma: c[1], Theta: c[2], Vega: c[3]},
		Put:  greekCells{Delta: c[4], Gamma: c[5], Theta: c[6], Vega: c[7]},
	}
}

func (r greekRow) side(s models.OptionSide) greekCells {
	if s == models.Put {
		return r.Put
	}
	return r.Call
}

func destructurePriceRow(row int, cells []string) (priceRow, error) {
	if len(cells) != priceRowCells {
		return priceRow{}, &FieldParseError{
			Row:    row,
			Column: "price_row",
			Value:  fmt.Sprint(cells),
			Err:    fmt.Errorf("%d cells, want %d", len(cells), priceRowCells),
		}
	}
	return newPriceRow([priceRowCells]string(cells)), nil
}

func destructureGreekRow(row int, cells []string) (greekRow, error) {
	if len(cells) != greekRowCells {
		return greekRow{}, &FieldParseError{
			Row:    row,
			Column: "greek_row",
			Value:  fmt.Sprint(cells),
			Err:    fmt.Errorf("%d cells, want %d", len(cells), greekRowCells),
		}
	}
	return newGreekRow([greekRowCells]string(cells)), nil
}
