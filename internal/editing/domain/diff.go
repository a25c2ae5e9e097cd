package domain

import (
	"sort"
	"strings"
)

// ChangeType classifies one field-level difference between two snapshots.
type ChangeType string

const (
	// ChangeAdded marks a field absent before and present after.
	ChangeAdded ChangeType = "added"
	// ChangeModified marks a field present on both sides with unequal values.
	ChangeModified ChangeType = "modified"
	// ChangeDeleted marks a field present before and absent after.
	ChangeDeleted ChangeType = "deleted"
	// ChangeMoved marks a step whose content is unchanged but whose order
	// index changed. It applies to steps only.
	ChangeMoved ChangeType = "moved"
	// ChangeNone marks an unchanged field. Unchanged fields are not emitted.
	ChangeNone ChangeType = "no_change"
)

// Tracked field names, in the fixed priority order diffs are emitted in.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldTags        = "tags"
	FieldSteps       = "steps"
)

// StepChange is one step-level difference, nested under the steps entry.
// Indexes are positions in the ordered step collection; -1 means absent.
type StepChange struct {
	StepID   string     `json:"stepId,omitempty"`
	Type     ChangeType `json:"type"`
	OldIndex int        `json:"oldIndex"`
	NewIndex int        `json:"newIndex"`
	Old      *Step      `json:"old,omitempty"`
	New      *Step      `json:"new,omitempty"`
}

// FieldChange is one tracked-field difference between two snapshots.
// Old and New are nil when the side is absent, so added and deleted stay
// unambiguous.
type FieldChange struct {
	Field string       `json:"field"`
	Type  ChangeType   `json:"type"`
	Old   *string      `json:"old,omitempty"`
	New   *string      `json:"new,omitempty"`
	Steps []StepChange `json:"steps,omitempty"`
}

// Diff is an ordered, typed change set between two document snapshots.
type Diff struct {
	Changes []FieldChange `json:"changes"`
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d.Changes) == 0
}

// Compare computes the field-level change set from one snapshot to another.
// Unchanged fields are omitted. Compare(a, b) and Compare(b, a) are
// structural inverses: added and deleted swap, modified swaps old and new,
// and moves are reported relative to the same two endpoints.
func Compare(from, to DocumentContent) Diff {
	var changes []FieldChange

	for _, scalar := range []struct {
		field    string
		old, new string
	}{
		{FieldTitle, from.Title, to.Title},
		{FieldDescription, from.Description, to.Description},
		{FieldCategory, from.Category, to.Category},
		{FieldTags, renderTags(from.Tags), renderTags(to.Tags)},
	} {
		if change, changed := scalarChange(scalar.field, scalar.old, scalar.new); changed {
			changes = append(changes, change)
		}
	}

	if stepChanges := diffSteps(from.Steps, to.Steps); len(stepChanges) > 0 {
		changes = append(changes, FieldChange{
			Field: FieldSteps,
			Type:  collectionChangeType(from.Steps, to.Steps),
			Steps: stepChanges,
		})
	}

	return Diff{Changes: changes}
}

// ChangedFields returns the names of the fields that differ between a
// baseline and the current draft, for conflict detection. Steps with stable
// identities contribute one sub-field per step id; id-less step changes
// collapse onto the steps field itself.
func ChangedFields(baseline, current DocumentContent) []string {
	diff := Compare(baseline, current)
	var fields []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}

	for _, change := range diff.Changes {
		if change.Field != FieldSteps {
			add(change.Field)
			continue
		}
		for _, step := range change.Steps {
			if step.StepID != "" {
				add(FieldSteps + "/" + step.StepID)
			} else {
				add(FieldSteps)
			}
		}
	}
	return fields
}

// Overlap returns the sorted intersection of two changed-field sets.
// Two sessions conflict iff the overlap is non-empty.
func Overlap(a, b []string) []string {
	inA := make(map[string]struct{}, len(a))
	for _, field := range a {
		inA[field] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, field := range b {
		if _, ok := inA[field]; !ok {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

func scalarChange(field, oldValue, newValue string) (FieldChange, bool) {
	switch {
	case oldValue == "" && newValue == "":
		return FieldChange{}, false
	case oldValue == "":
		return FieldChange{Field: field, Type: ChangeAdded, New: &newValue}, true
	case newValue == "":
		return FieldChange{Field: field, Type: ChangeDeleted, Old: &oldValue}, true
	case oldValue != newValue:
		return FieldChange{Field: field, Type: ChangeModified, Old: &oldValue, New: &newValue}, true
	default:
		return FieldChange{}, false
	}
}

func renderTags(tags []string) string {
	return strings.Join(tagSet(tags), ", ")
}

// diffSteps matches steps by stable id, falling back to positional matching
// for id-less steps. Unmatched old steps are deleted, unmatched new steps
// added. Changes are emitted in original order: old-side changes first by
// old position, then additions by new position.
func diffSteps(oldSteps, newSteps []Step) []StepChange {
	oldOrdered := sortedByOrder(oldSteps)
	newOrdered := sortedByOrder(newSteps)

	newIndexByID := make(map[string]int, len(newOrdered))
	for i, step := range newOrdered {
		if step.ID != "" {
			newIndexByID[step.ID] = i
		}
	}

	matched := make([]bool, len(newOrdered))
	var changes []StepChange

	for i := range oldOrdered {
		oldStep := oldOrdered[i]
		j, ok := -1, false
		if oldStep.ID != "" {
			j, ok = lookupIndex(newIndexByID, oldStep.ID)
		} else if i < len(newOrdered) && newOrdered[i].ID == "" && !matched[i] {
			j, ok = i, true
		}
		if !ok {
			changes = append(changes, StepChange{
				StepID:   oldStep.ID,
				Type:     ChangeDeleted,
				OldIndex: i,
				NewIndex: -1,
				Old:      &oldOrdered[i],
			})
			continue
		}

		matched[j] = true
		newStep := newOrdered[j]
		switch {
		case !oldStep.ContentEquals(newStep):
			changes = append(changes, StepChange{
				StepID:   oldStep.ID,
				Type:     ChangeModified,
				OldIndex: i,
				NewIndex: j,
				Old:      &oldOrdered[i],
				New:      &newOrdered[j],
			})
		case i != j:
			changes = append(changes, StepChange{
				StepID:   oldStep.ID,
				Type:     ChangeMoved,
				OldIndex: i,
				NewIndex: j,
				Old:      &oldOrdered[i],
				New:      &newOrdered[j],
			})
		}
	}

	for j := range newOrdered {
		if matched[j] {
			continue
		}
		changes = append(changes, StepChange{
			StepID:   newOrdered[j].ID,
			Type:     ChangeAdded,
			OldIndex: -1,
			NewIndex: j,
			New:      &newOrdered[j],
		})
	}

	return changes
}

func collectionChangeType(oldSteps, newSteps []Step) ChangeType {
	switch {
	case len(oldSteps) == 0 && len(newSteps) > 0:
		return ChangeAdded
	case len(oldSteps) > 0 && len(newSteps) == 0:
		return ChangeDeleted
	default:
		return ChangeModified
	}
}

func sortedByOrder(steps []Step) []Step {
	out := append([]Step(nil), steps...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}

func lookupIndex(index map[string]int, id string) (int, bool) {
	value, ok := index[id]
	if !ok {
		return -1, false
	}
	return value, true
}
