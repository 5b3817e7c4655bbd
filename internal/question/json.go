package question

import "encoding/json"

// Sets serialize as the ordered question list. Loading re-validates every
// dependency edge, so a hand-edited or corrupt payload cannot smuggle a
// cycle back in.

func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.All())
}

// UnmarshalJSON inserts every question before attaching edges, so a
// dependency on a question that appears later in the list survives the
// round trip.
func (s *Set) UnmarshalJSON(data []byte) error {
	var questions []*Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return err
	}
	s.questions = map[string]*Question{}
	s.order = nil
	for _, q := range questions {
		if q == nil || q.ID == "" {
			continue
		}
		s.insert(q)
	}
	for _, id := range s.order {
		s.attachDeps(s.questions[id])
	}
	return nil
}
