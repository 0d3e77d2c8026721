package processor

import (
	"fmt"
	"strings"
	"time"

	"optionflow/models"
)

const (
	updatedAtLayout     = "2006/01/02 15:04"
	updatedAtLayoutNoYr = "01/02 15:04"
	lastTradingLayout   = "2006/01/02"
)

// ParseUpdatedAt parses the page's update label. A label without a year
// takes the year of now; if that lands more than a day after now the label
// belongs to the previous year.
func ParseUpdatedAt(label string, now time.Time) (time.Time, error) {
	label = strings.TrimSpace(label)
	if t, err := time.ParseInLocation(updatedAtLayout, label, models.JST); err == nil {
		return t, nil
	}

	t, err := time.ParseInLocation(updatedAtLayoutNoYr, label, models.JST)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse update time %q: %w", label, err)
	}
	now = now.In(models.JST)
	t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, models.JST)
	if t.After(now.Add(24 * time.Hour)) {
		t = t.AddDate(-1, 0, 0)
	}
	return t, nil
}

// Reconciler turns bare time fragments into full JST timestamps relative to
// the page's update time. No resolved time lies after the reference by more
// than the granularity of its rule.
type Reconciler struct {
	ref time.Time
}

func NewReconciler(ref time.Time) Reconciler {
	return Reconciler{ref: ref.In(models.JST)}
}

func (r Reconciler) Reference() time.Time {
	return r.ref
}

// Intraday places c on the reference date, or on the previous day when that
// would be later than the reference.
func (r Reconciler) Intraday(c Clock) time.Time {
	t := time.Date(r.ref.Year(), r.ref.Month(), r.ref.Day(), c.Hour, c.Minute, 0, 0, models.JST)
	if t.After(r.ref) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// IntradayOpt applies Intraday to a present fragment.
func (r Reconciler) IntradayOpt(c models.Opt[Clock]) models.Opt[time.Time] {
	clock, ok := c.Get()
	if !ok {
		return models.None[time.Time]()
	}
	return models.Some(r.Intraday(clock))
}

// ContractMonth resolves a two digit year and month to the first day of
// the delivery month. A month before the reference month is next year's.
func (r Reconciler) ContractMonth(yy, month int) time.Time {
	year := yy
	if yy < 100 {
		year = r.ref.Year() - r.ref.Year()%100 + yy
	}
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, models.JST)
	refMonth := time.Date(r.ref.Year(), r.ref.Month(), 1, 0, 0, 0, 0, models.JST)
	if t.Before(refMonth) {
		t = t.AddDate(1, 0, 0)
	}
	return t
}

// SettlementDate resolves MM/DD in the reference year, or the year before
// when that would be later than the reference.
func (r Reconciler) SettlementDate(month, day int) time.Time {
	t := time.Date(r.ref.Year(), time.Month(month), day, 0, 0, 0, 0, models.JST)
	if t.After(r.ref) {
		t = time.Date(r.ref.Year()-1, time.Month(month), day, 0, 0, 0, 0, models.JST)
	}
	return t
}

// LastTradingDay parses the YYYY/MM/DD label as a JST date.
func LastTradingDay(label string) (time.Time, error) {
	return time.ParseInLocation(lastTradingLayout, strings.TrimSpace(label), models.JST)
}
