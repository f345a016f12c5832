package resolution

// Entry is one selected answer and its weight.
type Entry struct {
	AnswerID string  `json:"answerId"`
	Weight   float64 `json:"weight"`
}

// Choice maps answer ids to weights and remembers insertion order, so the
// request built from it is deterministic. The zero value is empty and ready
// to use.
type Choice struct {
	entries []Entry
}

// NewChoice builds a choice from entries in order. Later duplicates overwrite
// earlier weights in place.
func NewChoice(entries ...Entry) Choice {
	var c Choice
	for _, e := range entries {
		c.Set(e.AnswerID, e.Weight)
	}
	return c
}

// Set inserts or overwrites the weight for an answer. Overwrites keep the
// original position.
func (c *Choice) Set(answerID string, weight float64) {
	for i := range c.entries {
		if c.entries[i].AnswerID == answerID {
			c.entries[i].Weight = weight
			return
		}
	}
	c.entries = append(c.entries, Entry{AnswerID: answerID, Weight: weight})
}

// Delete removes an answer. Missing ids are ignored.
func (c *Choice) Delete(answerID string) {
	for i := range c.entries {
		if c.entries[i].AnswerID == answerID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// Reset empties the choice.
func (c *Choice) Reset() {
	c.entries = nil
}

// Get returns the weight for an answer.
func (c Choice) Get(answerID string) (float64, bool) {
	for _, e := range c.entries {
		if e.AnswerID == answerID {
			return e.Weight, true
		}
	}
	return 0, false
}

func (c Choice) Len() int { return len(c.entries) }

// Keys returns the answer ids in insertion order.
func (c Choice) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.AnswerID
	}
	return keys
}

// Entries returns a copy of the entries in insertion order.
func (c Choice) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// AllPositive reports whether every weight is strictly greater than zero.
func (c Choice) AllPositive() bool {
	for _, e := range c.entries {
		if !(e.Weight > 0) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (c Choice) Clone() Choice {
	return Choice{entries: c.Entries()}
}
