package features

import "fmt"

// Vocabulary is the fixed, ordered set of sensor identifiers known at
// schema-freeze time. It never shrinks during a model's lifetime; readings
// from sensors outside the vocabulary are excluded from feature
// construction rather than treated as errors.
type Vocabulary struct {
	ids   []string
	index map[string]int
}

// NewVocabulary builds a vocabulary from an ordered sensor id list.
// Duplicates keep their first position; an empty list is rejected because
// a schema with no indicator columns cannot identify a sensor.
func NewVocabulary(sensorIDs []string) (*Vocabulary, error) {
	v := &Vocabulary{index: make(map[string]int, len(sensorIDs))}
	for _, id := range sensorIDs {
		if id == "" {
			return nil, fmt.Errorf("vocabulary contains an empty sensor id")
		}
		if _, seen := v.index[id]; seen {
			continue
		}
		v.index[id] = len(v.ids)
		v.ids = append(v.ids, id)
	}
	if len(v.ids) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}
	return v, nil
}

// Size returns the number of sensors in the vocabulary.
func (v *Vocabulary) Size() int { return len(v.ids) }

// Index returns the position of a sensor id in the frozen ordering.
func (v *Vocabulary) Index(sensorID string) (int, bool) {
	i, ok := v.index[sensorID]
	return i, ok
}

// IDs returns a copy of the ordered sensor id list.
func (v *Vocabulary) IDs() []string {
	out := make([]string, len(v.ids))
	copy(out, v.ids)
	return out
}

// Contains reports whether the sensor id is part of the vocabulary.
func (v *Vocabulary) Contains(sensorID string) bool {
	_, ok := v.index[sensorID]
	return ok
}
