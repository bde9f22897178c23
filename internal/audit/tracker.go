package audit

import (
	"encoding/json"
	"reflect"

	"github.com/imatefx/control-tower/internal/domain"
)

// Diff compares the tracked fields of two entity snapshots. A field is
// reported when the values differ and at least one side is non-empty, which
// keeps noise like nil -> "" out of the trail. Returns nil when nothing
// qualifies; the recorder stores that as a null diff.
func Diff(prior, next map[string]any, fields []string) []domain.FieldChange {
	var changes []domain.FieldChange
	for _, field := range fields {
		oldValue := prior[field]
		newValue := next[field]
		if equalValues(oldValue, newValue) {
			continue
		}
		if isEmpty(oldValue) && isEmpty(newValue) {
			continue
		}
		changes = append(changes, domain.FieldChange{
			Field:    field,
			OldValue: oldValue,
			NewValue: newValue,
		})
	}
	return changes
}

// Snapshot flattens an entity into the map form Diff operates on. Field
// names follow the entity's JSON tags.
func Snapshot(v any) (map[string]any, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var state map[string]any
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func equalValues(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
