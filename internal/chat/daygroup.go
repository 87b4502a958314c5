package chat

import "time"

// DayGroup is one day's worth of messages under its display label.
type DayGroup struct {
	Label    string
	Messages []*Message
}

// GroupedByDay buckets the visible sequence by calendar day, in order of
// first occurrence. Recomputed on demand; conversations are page-bounded so
// no incremental index is kept.
func (s *Store) GroupedByDay() []DayGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := make(map[string]int)
	var groups []DayGroup
	for _, m := range s.msgs {
		label := s.dayLabel(m.CreatedAt)
		i, ok := idx[label]
		if !ok {
			i = len(groups)
			idx[label] = i
			groups = append(groups, DayGroup{Label: label})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}

func (s *Store) dayLabel(t time.Time) string {
	now := s.now()
	t = t.In(now.Location())
	if sameDay(t, now) {
		return "Today"
	}
	if sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	return t.Format("02 Jan 2006")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
