package domain

import (
	"encoding/json"
	"sort"
)

// AnswerSet is the set of choices checked for one question.
type AnswerSet map[string]struct{}

func NewAnswerSet(choices ...string) AnswerSet {
	set := make(AnswerSet, len(choices))
	for _, c := range choices {
		set[c] = struct{}{}
	}
	return set
}

func (a AnswerSet) Has(choice string) bool {
	_, ok := a[choice]
	return ok
}

// Toggle adds choice when absent and removes it when present.
func (a AnswerSet) Toggle(choice string) {
	if _, ok := a[choice]; ok {
		delete(a, choice)
		return
	}
	a[choice] = struct{}{}
}

// Equal reports set equality.
func (a AnswerSet) Equal(other AnswerSet) bool {
	if len(a) != len(other) {
		return false
	}
	for c := range a {
		if _, ok := other[c]; !ok {
			return false
		}
	}
	return true
}

func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for c := range a {
		out[c] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (a AnswerSet) Sorted() []string {
	out := make([]string, 0, len(a))
	for c := range a {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (a AnswerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Sorted())
}

func (a *AnswerSet) UnmarshalJSON(data []byte) error {
	var choices []string
	if err := json.Unmarshal(data, &choices); err != nil {
		return err
	}
	*a = NewAnswerSet(choices...)
	return nil
}

// EmptySelections returns one empty answer set per question.
func EmptySelections(n int) []AnswerSet {
	out := make([]AnswerSet, n)
	for i := range out {
		out[i] = AnswerSet{}
	}
	return out
}
