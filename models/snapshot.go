package models

import "time"

// Chain is the option table of one maturity.
type Chain struct {
	Calls []OptionQuote
	Puts  []OptionQuote
}

// Snapshot is one capture of spot, future and option chains sharing a
// single CreatedAt. It is read-only once built; accessors hand out copies.
type Snapshot struct {
	spot      SpotQuote
	future    FutureQuote
	chains    []Chain
	createdAt time.Time
}

// NewSnapshot stamps every record with createdAt and returns the
// assembled snapshot. The first chain is the primary maturity; option
// slices are copied.
func NewSnapshot(createdAt time.Time, spot SpotQuote, future FutureQuote, chains ...Chain) Snapshot {
	spot.CreatedAt = createdAt
	future.CreatedAt = createdAt

	owned := make([]Chain, len(chains))
	for i, c := range chains {
		owned[i] = Chain{
			Calls: stamp(c.Calls, createdAt),
			Puts:  stamp(c.Puts, createdAt),
		}
	}
	return Snapshot{
		spot:      spot,
		future:    future,
		chains:    owned,
		createdAt: createdAt,
	}
}

func stamp(in []OptionQuote, createdAt time.Time) []OptionQuote {
	out := make([]OptionQuote, len(in))
	copy(out, in)
	for i := range out {
		out[i].CreatedAt = createdAt
	}
	return out
}

func (s Snapshot) Spot() SpotQuote     { return s.spot }
func (s Snapshot) Future() FutureQuote { return s.future }

func (s Snapshot) CreatedAt() time.Time {
	return s.createdAt
}

// Calls returns every call, primary maturity first.
func (s Snapshot) Calls() []OptionQuote {
	var out []OptionQuote
	for _, c := range s.chains {
		out = append(out, c.Calls...)
	}
	return out
}

// Puts returns every put, primary maturity first.
func (s Snapshot) Puts() []OptionQuote {
	var out []OptionQuote
	for _, c := range s.chains {
		out = append(out, c.Puts...)
	}
	return out
}

// Options returns the chains in emission order: for each maturity its
// calls then its puts.
func (s Snapshot) Options() []OptionQuote {
	var out []OptionQuote
	for _, c := range s.chains {
		out = append(out, c.Calls...)
		out = append(out, c.Puts...)
	}
	return out
}

// Maturities is the number of option chains merged into the snapshot.
func (s Snapshot) Maturities() int {
	return len(s.chains)
}
