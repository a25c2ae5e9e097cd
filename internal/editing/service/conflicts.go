package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
	apperrors "github.com/prosessportal/editing/internal/platform/errors"
)

// ResolveRequest carries a conflict resolution choice. FieldsToKeep is only
// consulted for Merge: it maps a conflicting field to "mine" or "theirs",
// and unlisted fields default to the resolver's value.
type ResolveRequest struct {
	Type         domain.ResolutionType
	FieldsToKeep map[string]string
	Comment      string
}

// DetectConflicts compares the session's changed fields against every other
// live session on the process and records a conflict per overlapping pair.
// Detection is idempotent: an open conflict for the same pair is not
// duplicated. It returns the open conflicts involving the session.
func (s *Service) DetectConflicts(ctx context.Context, processID, sessionID string) ([]domain.Conflict, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ProcessID != processID {
		return nil, apperrors.WithMetadata(apperrors.CodeSessionNotFound,
			"session does not belong to process", map[string]string{
				"sessionId": sessionID,
				"processId": processID,
			})
	}

	mine, err := s.changedFieldsFor(ctx, session)
	if err != nil {
		return nil, err
	}

	if len(mine) > 0 {
		others, err := s.sweepProcess(ctx, processID)
		if err != nil {
			return nil, err
		}
		recorded, err := s.store.ListProcessConflicts(ctx, processID, false)
		if err != nil {
			return nil, err
		}

		for _, other := range others {
			if other.ID == session.ID {
				continue
			}
			theirs, err := s.changedFieldsFor(ctx, other)
			if err != nil {
				return nil, err
			}
			overlap := domain.Overlap(mine, theirs)
			if len(overlap) == 0 {
				continue
			}
			if conflictSuppressed(recorded, session.ID, other.ID, overlap) {
				continue
			}
			if err := s.recordConflict(ctx, &session, other, overlap); err != nil {
				return nil, err
			}
		}
	}

	return s.store.ListSessionConflicts(ctx, sessionID, true)
}

// conflictSuppressed keeps detection idempotent: a pair with an open
// conflict is never double-reported, and a resolved conflict keeps covering
// the fields it settled so a retried commit is not re-blocked.
func conflictSuppressed(conflicts []domain.Conflict, sessionA, sessionB string, overlap []string) bool {
	for _, conflict := range conflicts {
		if !conflict.SamePair(sessionA, sessionB) {
			continue
		}
		if !conflict.Resolved() {
			return true
		}
		if containsAll(conflict.Fields, overlap) {
			return true
		}
	}
	return false
}

func containsAll(haystack, needles []string) bool {
	set := make(map[string]struct{}, len(haystack))
	for _, field := range haystack {
		set[field] = struct{}{}
	}
	for _, field := range needles {
		if _, ok := set[field]; !ok {
			return false
		}
	}
	return true
}

func (s *Service) changedFieldsFor(ctx context.Context, session domain.Session) ([]string, error) {
	draft, err := s.store.GetDraft(ctx, session.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	baseline, err := s.baselineContent(ctx, session)
	if err != nil {
		return nil, err
	}
	return domain.ChangedFields(baseline, draft.Content), nil
}

func (s *Service) recordConflict(ctx context.Context, session *domain.Session, other domain.Session, fields []string) error {
	conflictID, err := s.newID()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	conflict := domain.Conflict{
		ID:         conflictID,
		ProcessID:  session.ProcessID,
		SessionID1: session.ID,
		UserID1:    session.UserID,
		SessionID2: other.ID,
		UserID2:    other.UserID,
		DetectedAt: now,
		Fields:     fields,
	}
	if err := s.store.PutConflict(ctx, conflict); err != nil {
		return err
	}

	for _, party := range []*domain.Session{session, &other} {
		if party.Status == domain.SessionStatusConflictDetected {
			continue
		}
		if err := party.Transition(domain.SessionStatusConflictDetected, now); err != nil {
			return err
		}
		if err := s.store.PutSession(ctx, *party); err != nil {
			return err
		}
	}

	s.metrics.ConflictsDetected.Inc()
	s.log.Warn().
		Str("conflict_id", conflictID).
		Str("process_id", session.ProcessID).
		Str("session_1", session.ID).
		Str("session_2", other.ID).
		Strs("fields", fields).
		Msg("edit conflict detected")
	return nil
}

// ListConflicts returns conflicts on a process, unresolved only when
// openOnly is set.
func (s *Service) ListConflicts(ctx context.Context, processID string, openOnly bool) ([]domain.Conflict, error) {
	return s.store.ListProcessConflicts(ctx, processID, openOnly)
}

// ResolveConflict settles an open conflict. Only the two involved users may
// resolve. The chosen values are written into the resolver's draft; Cancel
// abandons the resolver's session instead.
func (s *Service) ResolveConflict(ctx context.Context, conflictID, userID string, req ResolveRequest) (domain.Conflict, error) {
	if userID == "" {
		return domain.Conflict{}, apperrors.New(apperrors.CodeUserRequired, "user id is required")
	}

	conflict, err := s.store.GetConflict(ctx, conflictID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Conflict{}, apperrors.WithMetadata(apperrors.CodeConflictNotFound,
				"conflict not found", map[string]string{"conflictId": conflictID})
		}
		return domain.Conflict{}, err
	}
	if conflict.Resolved() {
		return domain.Conflict{}, apperrors.WithMetadata(apperrors.CodeConflictAlreadyResolved,
			"conflict is already resolved", map[string]string{"conflictId": conflictID})
	}

	var resolverSessionID string
	switch userID {
	case conflict.UserID1:
		resolverSessionID = conflict.SessionID1
	case conflict.UserID2:
		resolverSessionID = conflict.SessionID2
	default:
		return domain.Conflict{}, apperrors.WithMetadata(apperrors.CodeSessionNotOwned,
			"user is not a party to the conflict", map[string]string{"conflictId": conflictID})
	}
	otherSessionID := conflict.OtherSession(resolverSessionID)

	now := s.now().UTC()
	switch req.Type {
	case domain.ResolutionCancel:
		if err := s.cancelSession(ctx, resolverSessionID, now); err != nil {
			return domain.Conflict{}, err
		}
	case domain.ResolutionKeepMine, domain.ResolutionKeepTheirs, domain.ResolutionMerge:
		if err := s.applyResolution(ctx, conflict, resolverSessionID, otherSessionID, req); err != nil {
			return domain.Conflict{}, err
		}
	default:
		return domain.Conflict{}, apperrors.WithMetadata(apperrors.CodeConflictInvalidChoice,
			"unknown conflict resolution type", map[string]string{"resolution": string(req.Type)})
	}

	if err := conflict.Resolve(domain.Resolution{
		Type:       req.Type,
		ResolvedBy: userID,
		ResolvedAt: now,
		Comment:    req.Comment,
	}); err != nil {
		return domain.Conflict{}, err
	}
	if err := s.store.PutConflict(ctx, conflict); err != nil {
		return domain.Conflict{}, err
	}

	for _, sessionID := range []string{conflict.SessionID1, conflict.SessionID2} {
		if err := s.reactivateSession(ctx, sessionID, now); err != nil {
			return domain.Conflict{}, err
		}
	}

	s.metrics.ConflictsResolved.Inc()
	s.log.Info().
		Str("conflict_id", conflictID).
		Str("resolved_by", userID).
		Str("resolution", string(req.Type)).
		Msg("edit conflict resolved")
	return conflict, nil
}

// applyResolution writes the chosen field values into the resolver's draft.
func (s *Service) applyResolution(ctx context.Context, conflict domain.Conflict, resolverSessionID, otherSessionID string, req ResolveRequest) error {
	mine, err := s.store.GetDraft(ctx, resolverSessionID)
	if err != nil {
		return err
	}
	theirs, err := s.store.GetDraft(ctx, otherSessionID)
	if err != nil {
		return err
	}

	content := mine.Content.Clone()
	for _, field := range conflict.Fields {
		takeTheirs := false
		switch req.Type {
		case domain.ResolutionKeepTheirs:
			takeTheirs = true
		case domain.ResolutionMerge:
			takeTheirs = strings.EqualFold(req.FieldsToKeep[field], "theirs")
		}
		if takeTheirs {
			content = applyFieldValue(content, theirs.Content, field)
		}
	}

	mine.Content = content
	mine.UpdatedAt = s.now().UTC()
	mine.Seeded = false
	return s.store.PutDraft(ctx, mine)
}

// applyFieldValue copies one tracked field from src into dst. A steps/<id>
// field moves a single step: replaced when src has it, removed when it does
// not.
func applyFieldValue(dst, src domain.DocumentContent, field string) domain.DocumentContent {
	switch field {
	case domain.FieldTitle:
		dst.Title = src.Title
	case domain.FieldDescription:
		dst.Description = src.Description
	case domain.FieldCategory:
		dst.Category = src.Category
	case domain.FieldTags:
		dst.Tags = append([]string(nil), src.Tags...)
	case domain.FieldSteps:
		dst.Steps = append([]domain.Step(nil), src.Steps...)
	default:
		stepID, ok := strings.CutPrefix(field, domain.FieldSteps+"/")
		if !ok {
			return dst
		}
		dst.Steps = replaceStep(dst.Steps, src.Steps, stepID)
	}
	return dst
}

func replaceStep(dstSteps, srcSteps []domain.Step, stepID string) []domain.Step {
	var srcStep *domain.Step
	for i := range srcSteps {
		if srcSteps[i].ID == stepID {
			srcStep = &srcSteps[i]
			break
		}
	}

	out := make([]domain.Step, 0, len(dstSteps)+1)
	replaced := false
	for _, step := range dstSteps {
		if step.ID != stepID {
			out = append(out, step)
			continue
		}
		if srcStep != nil {
			out = append(out, *srcStep)
			replaced = true
		}
	}
	if srcStep != nil && !replaced {
		out = append(out, *srcStep)
	}
	return out
}

// cancelSession abandons a live session as part of a Cancel resolution.
func (s *Service) cancelSession(ctx context.Context, sessionID string, at time.Time) error {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := session.Transition(domain.SessionStatusCancelled, at); err != nil {
		return err
	}
	if err := s.store.PutSession(ctx, session); err != nil {
		return err
	}
	if err := s.teardownSession(ctx, session); err != nil {
		return err
	}
	s.metrics.SessionsCancelled.Inc()
	return nil
}

// reactivateSession returns a session to Active once no open conflicts
// involve it anymore.
func (s *Service) reactivateSession(ctx context.Context, sessionID string, at time.Time) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if session.Status != domain.SessionStatusConflictDetected {
		return nil
	}
	open, err := s.store.ListSessionConflicts(ctx, sessionID, true)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return nil
	}
	if err := session.Transition(domain.SessionStatusActive, at); err != nil {
		return err
	}
	session.LastActivity = at
	return s.store.PutSession(ctx, session)
}
