package feed

import "github.com/sawpanic/backtest-engine/internal/bar"

// QuoteFeed is the separate 1-minute bar stream used for execution, fills,
// intrabar TP/SL checks, and the mark/last price proxy during the bar
// processor's 1m sub-loop.
type QuoteFeed struct {
	bars []bar.Bar
}

func NewQuoteFeed() *QuoteFeed { return &QuoteFeed{} }

func (q *QuoteFeed) Append(b bar.Bar) { q.bars = append(q.bars, b) }
func (q *QuoteFeed) Len() int         { return len(q.bars) }
func (q *QuoteFeed) At(idx int) bar.Bar { return q.bars[idx] }

// Range returns the 1m bars whose ts_close falls within (execOpenMs,
// execCloseMs], i.e. the 1m bars belonging to one exec bar.
func (q *QuoteFeed) Range(execOpenMs, execCloseMs int64) []bar.Bar {
	start := -1
	end := -1
	for i, b := range q.bars {
		if b.TsClose > execOpenMs && b.TsClose <= execCloseMs {
			if start == -1 {
				start = i
			}
			end = i
		} else if b.TsClose > execCloseMs {
			break
		}
	}
	if start == -1 {
		return nil
	}
	return q.bars[start : end+1]
}

// Set is the Feed Store aggregate for one Play run: exec/med/high columnar
// stores plus the 1-minute quote feed.
type Set struct {
	Exec  *Store
	Med   *Store
	High  *Store
	Quote *QuoteFeed
}

func NewSet(execTF, medTF, highTF bar.Timeframe) *Set {
	return &Set{
		Exec:  NewStore(RoleExec, execTF),
		Med:   NewStore(RoleMed, medTF),
		High:  NewStore(RoleHigh, highTF),
		Quote: NewQuoteFeed(),
	}
}

// HTFIdxForExec resolves the forward-filled index into the med/high store
// for a given exec bar's ts_close.
func (s *Set) HTFIdxForExec(role Role, execTsClose int64) (int, bool) {
	switch role {
	case RoleMed:
		return s.Med.IdxAtOrBefore(execTsClose)
	case RoleHigh:
		return s.High.IdxAtOrBefore(execTsClose)
	default:
		return s.Exec.IdxAtOrBefore(execTsClose)
	}
}
