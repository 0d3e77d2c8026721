package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JST is the exchange's local time zone. Every reconstructed timestamp is
// expressed in it.
var JST = loadJST()

func loadJST() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// OptionSide is either Call or Put. The integer value is what the
// warehouse stores.
type OptionSide int

const (
	Call OptionSide = 1
	Put  OptionSide = 2
)

// Sides lists both option sides in table order.
var Sides = [2]OptionSide{Call, Put}

func (s OptionSide) String() string {
	switch s {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return fmt.Sprintf("OptionSide(%d)", int(s))
	}
}

// SpotQuote is the Nikkei 225 index row of the summary block.
type SpotQuote struct {
	Price     Opt[decimal.Decimal]
	PriceTime Opt[time.Time]
	Diff      Opt[decimal.Decimal]
	DiffRate  Opt[decimal.Decimal] // percent
	HV        Opt[decimal.Decimal] // percent
	CreatedAt time.Time
}

// FutureQuote is the Nikkei 225 future row of the summary block.
// ContractMonth is the first day of the delivery month in JST.
type FutureQuote struct {
	Price         Opt[decimal.Decimal]
	PriceTime     Opt[time.Time]
	Diff          Opt[decimal.Decimal]
	DiffRate      Opt[decimal.Decimal]
	HV            Opt[decimal.Decimal]
	ContractMonth time.Time
	CreatedAt     time.Time
}

// OptionQuote is one side of one strike in the option chain.
type OptionQuote struct {
	Side   OptionSide
	Strike int
	IsATM  bool

	Price     Opt[decimal.Decimal]
	PriceTime Opt[time.Time]
	Diff      Opt[decimal.Decimal]
	DiffRate  Opt[decimal.Decimal]
	IV        Opt[decimal.Decimal]

	Bid       Opt[decimal.Decimal]
	BidVolume Opt[int64]
	BidIV     Opt[decimal.Decimal]
	Ask       Opt[decimal.Decimal]
	AskVolume Opt[int64]
	AskIV     Opt[decimal.Decimal]

	Volume          Opt[int64]
	OpenInterest    Opt[int64]
	SettlementPrice Opt[decimal.Decimal]
	SettlementDate  time.Time

	Delta Opt[decimal.Decimal]
	Gamma Opt[decimal.Decimal]
	Theta Opt[decimal.Decimal]
	Vega  Opt[decimal.Decimal]

	LastTradingDay time.Time
	CreatedAt      time.Time
}
