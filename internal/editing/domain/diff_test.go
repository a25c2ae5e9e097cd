package domain

import (
	"reflect"
	"testing"
)

func baseContent() DocumentContent {
	return DocumentContent{
		Title:       "Employee onboarding",
		Description: "How we onboard new hires",
		Category:    "HR",
		Tags:        []string{"hr", "onboarding"},
		Steps: []Step{
			{ID: "step-1", Title: "Create accounts", Type: StepTypeAction, OrderIndex: 0},
			{ID: "step-2", Title: "Assign buddy", Type: StepTypeAction, OrderIndex: 1},
		},
	}
}

func TestCompareScalarFields(t *testing.T) {
	t.Parallel()

	from := baseContent()
	to := baseContent()
	to.Title = "Employee onboarding v2"
	to.Category = ""
	to.Description = from.Description

	diff := Compare(from, to)
	if len(diff.Changes) != 2 {
		t.Fatalf("changes = %d, want 2: %+v", len(diff.Changes), diff.Changes)
	}

	title := diff.Changes[0]
	if title.Field != FieldTitle || title.Type != ChangeModified {
		t.Fatalf("first change = %+v, want modified title", title)
	}
	if *title.Old != from.Title || *title.New != to.Title {
		t.Fatalf("title old/new = %q/%q", *title.Old, *title.New)
	}

	category := diff.Changes[1]
	if category.Field != FieldCategory || category.Type != ChangeDeleted {
		t.Fatalf("second change = %+v, want deleted category", category)
	}
	if category.New != nil {
		t.Fatal("deleted field must have nil new value")
	}
}

func TestCompareFieldOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	from := DocumentContent{}
	to := baseContent()

	diff := Compare(from, to)
	want := []string{FieldTitle, FieldDescription, FieldCategory, FieldTags, FieldSteps}
	var got []string
	for _, change := range diff.Changes {
		got = append(got, change.Field)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("field order = %v, want %v", got, want)
	}
	for _, change := range diff.Changes {
		if change.Type != ChangeAdded {
			t.Fatalf("%s type = %v, want %v", change.Field, change.Type, ChangeAdded)
		}
	}
}

func TestCompareTagsAsSet(t *testing.T) {
	t.Parallel()

	from := baseContent()
	to := baseContent()
	to.Tags = []string{"onboarding", "hr"} // same set, different order

	if diff := Compare(from, to); !diff.Empty() {
		t.Fatalf("reordered tags should not change, got %+v", diff.Changes)
	}

	to.Tags = []string{"hr", "onboarding", "checklist"}
	diff := Compare(from, to)
	if len(diff.Changes) != 1 || diff.Changes[0].Field != FieldTags || diff.Changes[0].Type != ChangeModified {
		t.Fatalf("tag diff = %+v, want one modified tags change", diff.Changes)
	}
}

func TestCompareStepsMovedOnly(t *testing.T) {
	t.Parallel()

	from := DocumentContent{Steps: []Step{
		{ID: "1", Title: "First", OrderIndex: 0},
		{ID: "2", Title: "Second", OrderIndex: 1},
	}}
	to := DocumentContent{Steps: []Step{
		{ID: "2", Title: "Second", OrderIndex: 0},
		{ID: "1", Title: "First", OrderIndex: 1},
	}}

	diff := Compare(from, to)
	if len(diff.Changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(diff.Changes))
	}
	steps := diff.Changes[0].Steps
	if len(steps) != 2 {
		t.Fatalf("step changes = %d, want 2", len(steps))
	}
	for _, change := range steps {
		if change.Type != ChangeMoved {
			t.Fatalf("step %s type = %v, want %v", change.StepID, change.Type, ChangeMoved)
		}
	}
	if steps[0].StepID != "1" || steps[0].OldIndex != 0 || steps[0].NewIndex != 1 {
		t.Fatalf("step 1 move = %+v, want 0 -> 1", steps[0])
	}
	if steps[1].StepID != "2" || steps[1].OldIndex != 1 || steps[1].NewIndex != 0 {
		t.Fatalf("step 2 move = %+v, want 1 -> 0", steps[1])
	}
}

func TestCompareStepsAddDeleteModify(t *testing.T) {
	t.Parallel()

	from := DocumentContent{Steps: []Step{
		{ID: "1", Title: "Keep", OrderIndex: 0},
		{ID: "2", Title: "Old name", OrderIndex: 1},
		{ID: "3", Title: "Drop", OrderIndex: 2},
	}}
	to := DocumentContent{Steps: []Step{
		{ID: "1", Title: "Keep", OrderIndex: 0},
		{ID: "2", Title: "New name", OrderIndex: 1},
		{ID: "4", Title: "Fresh", OrderIndex: 2},
	}}

	diff := Compare(from, to)
	if len(diff.Changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(diff.Changes))
	}
	steps := diff.Changes[0].Steps
	if len(steps) != 3 {
		t.Fatalf("step changes = %d, want 3: %+v", len(steps), steps)
	}
	if steps[0].StepID != "2" || steps[0].Type != ChangeModified {
		t.Fatalf("first = %+v, want modified step 2", steps[0])
	}
	if steps[1].StepID != "3" || steps[1].Type != ChangeDeleted || steps[1].NewIndex != -1 {
		t.Fatalf("second = %+v, want deleted step 3", steps[1])
	}
	if steps[2].StepID != "4" || steps[2].Type != ChangeAdded || steps[2].OldIndex != -1 {
		t.Fatalf("third = %+v, want added step 4", steps[2])
	}
}

func TestComparePositionalFallbackForIDLessSteps(t *testing.T) {
	t.Parallel()

	from := DocumentContent{Steps: []Step{
		{Title: "Draft step", OrderIndex: 0},
	}}
	to := DocumentContent{Steps: []Step{
		{Title: "Draft step renamed", OrderIndex: 0},
	}}

	diff := Compare(from, to)
	steps := diff.Changes[0].Steps
	if len(steps) != 1 || steps[0].Type != ChangeModified {
		t.Fatalf("id-less steps at same position should pair as modified, got %+v", steps)
	}
}

// invert computes the expected mirror of a change set for the round-trip law.
func invert(diff Diff) Diff {
	out := Diff{}
	for _, change := range diff.Changes {
		inverted := FieldChange{Field: change.Field, Old: change.New, New: change.Old}
		switch change.Type {
		case ChangeAdded:
			inverted.Type = ChangeDeleted
		case ChangeDeleted:
			inverted.Type = ChangeAdded
		default:
			inverted.Type = change.Type
		}
		for _, step := range change.Steps {
			invertedStep := StepChange{
				StepID:   step.StepID,
				OldIndex: step.NewIndex,
				NewIndex: step.OldIndex,
				Old:      step.New,
				New:      step.Old,
			}
			switch step.Type {
			case ChangeAdded:
				invertedStep.Type = ChangeDeleted
			case ChangeDeleted:
				invertedStep.Type = ChangeAdded
			default:
				invertedStep.Type = step.Type
			}
			inverted.Steps = append(inverted.Steps, invertedStep)
		}
		out.Changes = append(out.Changes, inverted)
	}
	return out
}

func sortStepChanges(diff Diff) {
	for i := range diff.Changes {
		steps := diff.Changes[i].Steps
		for a := range steps {
			for b := a + 1; b < len(steps); b++ {
				if steps[b].StepID < steps[a].StepID {
					steps[a], steps[b] = steps[b], steps[a]
				}
			}
		}
	}
}

func TestCompareRoundTripLaw(t *testing.T) {
	t.Parallel()

	a := baseContent()
	b := baseContent()
	b.Title = "Renamed"
	b.Tags = nil
	b.Steps = []Step{
		{ID: "step-2", Title: "Assign buddy", Type: StepTypeAction, OrderIndex: 0},
		{ID: "step-3", Title: "Schedule intro", Type: StepTypeAction, OrderIndex: 1},
	}

	forward := Compare(a, b)
	backward := Compare(b, a)
	expected := invert(forward)

	// Step emission order differs between directions (old-side first), so
	// compare per-field change sets with a stable step order.
	sortStepChanges(backward)
	sortStepChanges(expected)

	if len(backward.Changes) != len(expected.Changes) {
		t.Fatalf("backward changes = %d, want %d", len(backward.Changes), len(expected.Changes))
	}
	for i := range expected.Changes {
		if !reflect.DeepEqual(backward.Changes[i], expected.Changes[i]) {
			t.Fatalf("change %d:\n got %+v\nwant %+v", i, backward.Changes[i], expected.Changes[i])
		}
	}
}

func TestChangedFields(t *testing.T) {
	t.Parallel()

	baseline := baseContent()
	draft := baseContent()
	draft.Title = "New title"
	draft.Steps[1].Title = "Assign a buddy"

	fields := ChangedFields(baseline, draft)
	want := []string{"title", "steps/step-2"}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("changed fields = %v, want %v", fields, want)
	}
}

func TestOverlap(t *testing.T) {
	t.Parallel()

	if got := Overlap([]string{"title"}, []string{"description"}); len(got) != 0 {
		t.Fatalf("disjoint overlap = %v, want empty", got)
	}
	got := Overlap([]string{"title", "tags"}, []string{"tags", "title", "steps/1"})
	if !reflect.DeepEqual(got, []string{"tags", "title"}) {
		t.Fatalf("overlap = %v, want [tags title]", got)
	}
}

func TestHistoryUndoRedo(t *testing.T) {
	t.Parallel()

	history := NewHistory(3)
	v1 := DocumentContent{Title: "v1"}
	v2 := DocumentContent{Title: "v2"}
	v3 := DocumentContent{Title: "v3"}

	history.Record(v1) // editing v1 -> v2
	history.Record(v2) // editing v2 -> v3

	restored, ok := history.Undo(v3)
	if !ok || restored.Title != "v2" {
		t.Fatalf("undo = %+v/%v, want v2", restored, ok)
	}
	restored, ok = history.Undo(restored)
	if !ok || restored.Title != "v1" {
		t.Fatalf("second undo = %+v/%v, want v1", restored, ok)
	}
	if _, ok := history.Undo(restored); ok {
		t.Fatal("expected empty undo stack")
	}

	restored, ok = history.Redo(v1)
	if !ok || restored.Title != "v2" {
		t.Fatalf("redo = %+v/%v, want v2", restored, ok)
	}
	undoDepth, redoDepth := history.Depths()
	if undoDepth != 1 || redoDepth != 1 {
		t.Fatalf("depths = %d/%d, want 1/1", undoDepth, redoDepth)
	}
}

func TestHistoryBoundedAndForked(t *testing.T) {
	t.Parallel()

	history := NewHistory(2)
	history.Record(DocumentContent{Title: "v1"})
	history.Record(DocumentContent{Title: "v2"})
	history.Record(DocumentContent{Title: "v3"}) // v1 falls off

	restored, ok := history.Undo(DocumentContent{Title: "v4"})
	if !ok || restored.Title != "v3" {
		t.Fatalf("undo = %+v, want v3", restored)
	}

	// A new edit clears the redo stack.
	history.Record(DocumentContent{Title: "v3b"})
	if _, redoDepth := history.Depths(); redoDepth != 0 {
		t.Fatalf("redo depth after new edit = %d, want 0", redoDepth)
	}
}
