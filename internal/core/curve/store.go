package curve

import (
	"encoding/json"
	"time"
)

const (
	keyDischarge = "discharge"
	keyCharge    = "charge"
)

// BinRecord holds the running mean of one bin. Mean is nil exactly when N is 0.
type BinRecord struct {
	N      int      `json:"n"`
	Mean   *float64 `json:"mean"`
	LastTs *int64   `json:"last_ts"`
}

func (r *BinRecord) HasMean() bool {
	return r != nil && r.Mean != nil && r.N > 0
}

// Add folds y into the running mean.
func (r *BinRecord) Add(y float64, now time.Time) {
	if r.Mean == nil {
		r.N = 1
		r.Mean = &y
	} else {
		r.N++
		mean := *r.Mean + (y-*r.Mean)/float64(r.N)
		r.Mean = &mean
	}
	ts := now.Unix()
	r.LastTs = &ts
}

func (r *BinRecord) clone() *BinRecord {
	if r == nil {
		return nil
	}
	c := &BinRecord{N: r.N}
	if r.Mean != nil {
		m := *r.Mean
		c.Mean = &m
	}
	if r.LastTs != nil {
		ts := *r.LastTs
		c.LastTs = &ts
	}
	return c
}

// Bins maps bin keys to their records.
type Bins map[string]*BinRecord

// Add updates the bin containing x with observation y. Unknown or out of
// range bins are left untouched and false is returned.
func (b Bins) Add(x, y float64, width, max int, now time.Time) bool {
	key, ok := BinKey(x, width, max)
	if !ok {
		return false
	}
	rec, ok := b[key]
	if !ok || rec == nil {
		return false
	}
	rec.Add(y, now)
	return true
}

func (b Bins) clone() Bins {
	if b == nil {
		return nil
	}
	c := make(Bins, len(b))
	for k, v := range b {
		c[k] = v.clone()
	}
	return c
}

// Aggregate is the persisted unit: one bin map per direction. Top-level keys
// other than "discharge" and "charge" are kept verbatim across load/save.
type Aggregate struct {
	Discharge Bins
	Charge    Bins

	extra map[string]json.RawMessage
}

func NewAggregate() *Aggregate {
	return &Aggregate{
		Discharge: Bins{},
		Charge:    Bins{},
	}
}

// Bins returns the map for dir, or nil for an unknown direction.
func (a *Aggregate) Bins(dir Direction) Bins {
	switch dir {
	case Discharge:
		return a.Discharge
	case Charge:
		return a.Charge
	}
	return nil
}

// EnsureBins creates any missing direction map and any missing bin of the
// configured range. Existing records, including keys that no longer belong
// to the range, are kept.
func (a *Aggregate) EnsureBins(width, max int) {
	if a.Discharge == nil {
		a.Discharge = Bins{}
	}
	if a.Charge == nil {
		a.Charge = Bins{}
	}
	for _, key := range BinKeys(width, max) {
		for _, bins := range []Bins{a.Discharge, a.Charge} {
			if bins[key] == nil {
				bins[key] = &BinRecord{}
			}
		}
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (a *Aggregate) Clone() *Aggregate {
	c := &Aggregate{
		Discharge: a.Discharge.clone(),
		Charge:    a.Charge.clone(),
	}
	if a.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(a.extra))
		for k, v := range a.extra {
			c.extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

func (a *Aggregate) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.extra)+2)
	for k, v := range a.extra {
		out[k] = v
	}
	out[keyDischarge] = nonNilBins(a.Discharge)
	out[keyCharge] = nonNilBins(a.Charge)
	return json.Marshal(out)
}

func (a *Aggregate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	agg := Aggregate{}
	for k, v := range raw {
		switch k {
		case keyDischarge:
			if err := json.Unmarshal(v, &agg.Discharge); err != nil {
				return err
			}
		case keyCharge:
			if err := json.Unmarshal(v, &agg.Charge); err != nil {
				return err
			}
		default:
			if agg.extra == nil {
				agg.extra = make(map[string]json.RawMessage)
			}
			agg.extra[k] = v
		}
	}
	*a = agg
	return nil
}

func nonNilBins(b Bins) Bins {
	if b == nil {
		return Bins{}
	}
	return b
}
