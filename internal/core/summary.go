package core

import "time"

// Summary aggregates every account of one owner.
//
// TotalSpent and TotalSpentThisMonth are net sums (credits included); the
// names are kept for compatibility with existing clients.
type Summary struct {
	TotalBudget         Money            `json:"totalBudget"`
	TotalSpent          Money            `json:"totalSpent"`
	TotalSpentThisMonth Money            `json:"totalSpentThisMonth"`
	SpentByType         map[string]Money `json:"spentByType"`
}

// Summarize computes the owner-wide summary. The current month is the
// calendar month of now as seen in loc; a nil loc means UTC.
func Summarize(accounts []Account, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	year, month, _ := now.In(loc).Date()

	s := Summary{
		TotalBudget:         Zero,
		TotalSpent:          Zero,
		TotalSpentThisMonth: Zero,
		SpentByType:         make(map[string]Money),
	}

	for _, a := range accounts {
		s.TotalBudget = s.TotalBudget.Add(a.Budget)
		for _, tx := range a.Transactions {
			s.TotalSpent = s.TotalSpent.Add(tx.Value)

			y, m, _ := tx.CreatedAt.In(loc).Date()
			if y == year && m == month {
				s.TotalSpentThisMonth = s.TotalSpentThisMonth.Add(tx.Value)
			}

			key := tx.Type
			if key == "" {
				key = UntypedKey
			}
			if cur, ok := s.SpentByType[key]; ok {
				s.SpentByType[key] = cur.Add(tx.Value)
			} else {
				s.SpentByType[key] = tx.Value
			}
		}
	}
	return s
}
