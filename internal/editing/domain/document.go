// Package domain defines the entities and lifecycle rules for collaborative
// process editing: sessions, drafts, commit locks, conflicts, and versions.
package domain

import "sort"

// StepType classifies a process step.
type StepType string

// Step types mirror the process modeling vocabulary of the portal.
const (
	StepTypeStart      StepType = "start"
	StepTypeAction     StepType = "action"
	StepTypeDecision   StepType = "decision"
	StepTypeApproval   StepType = "approval"
	StepTypeReview     StepType = "review"
	StepTypeWait       StepType = "wait"
	StepTypeEnd        StepType = "end"
	StepTypeSubprocess StepType = "subprocess"
)

// Step is one ordered step of a process document.
type Step struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Instructions    string   `json:"instructions,omitempty"`
	Type            StepType `json:"type"`
	ResponsibleRole string   `json:"responsibleRole,omitempty"`
	DurationMinutes int      `json:"durationMinutes,omitempty"`
	Optional        bool     `json:"optional,omitempty"`
	OrderIndex      int      `json:"orderIndex"`
}

// ContentEquals reports whether two steps carry the same content,
// ignoring their position in the step collection.
func (s Step) ContentEquals(other Step) bool {
	return s.ID == other.ID &&
		s.Title == other.Title &&
		s.Description == other.Description &&
		s.Instructions == other.Instructions &&
		s.Type == other.Type &&
		s.ResponsibleRole == other.ResponsibleRole &&
		s.DurationMinutes == other.DurationMinutes &&
		s.Optional == other.Optional
}

// DocumentContent is the editable payload of a process document. It is the
// shape drafts, auto-save records, and version snapshots all share.
type DocumentContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Steps       []Step   `json:"steps,omitempty"`
}

// Clone returns a deep copy of the content.
func (c DocumentContent) Clone() DocumentContent {
	out := c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.Steps != nil {
		out.Steps = append([]Step(nil), c.Steps...)
	}
	return out
}

// Empty reports whether the content carries no data at all.
func (c DocumentContent) Empty() bool {
	return c.Title == "" && c.Description == "" && c.Category == "" &&
		len(c.Tags) == 0 && len(c.Steps) == 0
}

// tagSet returns the tags as a sorted, deduplicated slice. The tag collection
// is compared as a set: order does not matter for change detection.
func tagSet(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
