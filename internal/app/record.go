package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"timed-quiz-service/internal/domain"
)

// Keys of the resumable record.
const (
	KeyCurrentIndex     = "currentIndex"
	KeyRemainingSeconds = "remainingSeconds"
	KeyInProgress       = "inProgress"
	KeySelections       = "selections"
)

var recordKeys = []string{KeyCurrentIndex, KeyRemainingSeconds, KeyInProgress, KeySelections}

// record holds the resumable fields of a session.
type record struct {
	CurrentIndex     int
	RemainingSeconds int
	InProgress       bool
	Selections       []domain.AnswerSet
}

func freshRecord(questionCount, timeLimit int) record {
	return record{
		RemainingSeconds: timeLimit,
		Selections:       domain.EmptySelections(questionCount),
	}
}

func saveRecord(ctx context.Context, store SessionStore, rec record) error {
	selections, err := json.Marshal(rec.Selections)
	if err != nil {
		return fmt.Errorf("encode selections: %w", err)
	}
	values := map[string]string{
		KeyCurrentIndex:     strconv.Itoa(rec.CurrentIndex),
		KeyRemainingSeconds: strconv.Itoa(rec.RemainingSeconds),
		KeyInProgress:       strconv.FormatBool(rec.InProgress),
		KeySelections:       string(selections),
	}
	var errs []error
	for _, key := range recordKeys {
		if err := store.Set(ctx, key, values[key]); err != nil {
			errs = append(errs, fmt.Errorf("set %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func clearRecord(ctx context.Context, store SessionStore) error {
	var errs []error
	for _, key := range recordKeys {
		if err := store.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// loadRecord reads the record field by field. Absent or malformed fields fall
// back to fresh-session values; a record that is not in progress is fresh.
func loadRecord(ctx context.Context, store SessionStore, questions []domain.Question, timeLimit int) (record, bool) {
	rec := freshRecord(len(questions), timeLimit)

	raw, ok := getField(ctx, store, KeyInProgress)
	if !ok {
		return rec, false
	}
	inProgress, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("session record: malformed %s=%q, starting fresh", KeyInProgress, raw)
		return rec, true
	}
	if !inProgress || len(questions) == 0 {
		return rec, true
	}
	rec.InProgress = true

	if raw, ok := getField(ctx, store, KeyCurrentIndex); ok {
		idx, err := strconv.Atoi(raw)
		if err == nil && idx >= 0 && idx < len(questions) {
			rec.CurrentIndex = idx
		} else {
			log.Printf("session record: malformed %s=%q, using 0", KeyCurrentIndex, raw)
		}
	}

	if raw, ok := getField(ctx, store, KeyRemainingSeconds); ok {
		secs, err := strconv.Atoi(raw)
		if err == nil && secs >= 0 && secs <= timeLimit {
			rec.RemainingSeconds = secs
		} else {
			log.Printf("session record: malformed %s=%q, using %d", KeyRemainingSeconds, raw, timeLimit)
		}
	}

	if raw, ok := getField(ctx, store, KeySelections); ok {
		selections, err := decodeSelections(raw, questions)
		if err == nil {
			rec.Selections = selections
		} else {
			log.Printf("session record: malformed %s: %v, using empty selections", KeySelections, err)
		}
	}
	return rec, true
}

func getField(ctx context.Context, store SessionStore, key string) (string, bool) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		log.Printf("session record: get %s: %v", key, err)
		return "", false
	}
	return raw, ok
}

func decodeSelections(raw string, questions []domain.Question) ([]domain.AnswerSet, error) {
	var selections []domain.AnswerSet
	if err := json.Unmarshal([]byte(raw), &selections); err != nil {
		return nil, err
	}
	if len(selections) != len(questions) {
		return nil, fmt.Errorf("got %d entries for %d questions", len(selections), len(questions))
	}
	for i, set := range selections {
		if set == nil {
			selections[i] = domain.AnswerSet{}
			continue
		}
		for choice := range set {
			if !questions[i].HasChoice(choice) {
				return nil, fmt.Errorf("question %d has no choice %q", i, choice)
			}
		}
	}
	return selections, nil
}
