package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
	apperrors "github.com/prosessportal/editing/internal/platform/errors"
)

// CompleteRequest promotes a draft into a new version. Content overrides the
// stored draft when set; ChangeComment leads the generated change log.
type CompleteRequest struct {
	Content       *domain.DocumentContent
	ChangeType    domain.VersionChangeType
	ChangeComment string
}

// CompleteEdit promotes the session's draft into the new current version.
// The session must hold the commit lock, have no unresolved conflicts, and
// still be based on the current version; the insert and current flip are
// atomic, so a racing commit loses with a stale baseline error.
func (s *Service) CompleteEdit(ctx context.Context, sessionID, userID string, req CompleteRequest) (domain.Version, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return domain.Version{}, err
	}
	if _, err := domain.ParseVersionChangeType(string(req.ChangeType)); err != nil {
		return domain.Version{}, err
	}

	content, err := s.commitContent(ctx, sessionID, req)
	if err != nil {
		return domain.Version{}, err
	}

	now := s.now().UTC()
	lock, err := s.store.GetLock(ctx, session.ProcessID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.Version{}, apperrors.WithMetadata(apperrors.CodeLockRequired,
			"completing an edit requires the commit lock", map[string]string{"sessionId": sessionID})
	case err != nil:
		return domain.Version{}, err
	case lock.ExpiredBy(now):
		return domain.Version{}, apperrors.WithMetadata(apperrors.CodeLockRequired,
			"commit lock has expired", map[string]string{"sessionId": sessionID})
	case lock.SessionID != sessionID:
		return domain.Version{}, apperrors.WithMetadata(apperrors.CodeLockNotOwned,
			"another session holds the commit lock", map[string]string{
				"sessionId": sessionID,
				"heldBy":    lock.UserID,
			})
	}

	open, err := s.DetectConflicts(ctx, session.ProcessID, sessionID)
	if err != nil {
		return domain.Version{}, err
	}
	if len(open) > 0 {
		ids := make([]string, len(open))
		for i, conflict := range open {
			ids[i] = conflict.ID
		}
		return domain.Version{}, apperrors.WithMetadata(apperrors.CodeConflictUnresolved,
			"session has unresolved conflicts", map[string]string{
				"sessionId":   sessionID,
				"conflictIds": strings.Join(ids, ","),
			})
	}

	previousID := ""
	previousNumber := ""
	var previousContent domain.DocumentContent
	current, err := s.store.GetCurrentVersion(ctx, session.ProcessID)
	switch {
	case err == nil:
		previousID = current.ID
		previousNumber = current.Number
		previousContent = current.Content
	case errors.Is(err, storage.ErrNotFound):
		// First version of the process.
	default:
		return domain.Version{}, err
	}
	if session.BaselineVersionID != previousID {
		s.metrics.StaleBaselines.Inc()
		return domain.Version{}, staleBaselineError(sessionID, session.BaselineVersionID, previousID)
	}

	number := domain.InitialVersionNumber
	if previousID != "" {
		number = domain.NextVersionNumber(previousNumber, req.ChangeType)
	}

	versionID, err := s.newID()
	if err != nil {
		return domain.Version{}, err
	}
	version := domain.Version{
		ID:        versionID,
		ProcessID: session.ProcessID,
		Number:    number,
		Content:   content.Clone(),
		ChangeLog: renderChangeLog(req.ChangeComment, domain.Compare(previousContent, content)),
		CreatedBy: userID,
		CreatedAt: now,
		IsCurrent: true,
	}
	if err := s.store.InsertVersionAndFlipCurrent(ctx, version, previousID); err != nil {
		if errors.Is(err, storage.ErrStaleBaseline) {
			s.metrics.StaleBaselines.Inc()
			return domain.Version{}, staleBaselineError(sessionID, previousID, "")
		}
		return domain.Version{}, err
	}

	if err := session.Transition(domain.SessionStatusCompleted, now); err != nil {
		return domain.Version{}, err
	}
	session.CompletionComment = req.ChangeComment
	session.CreatedVersionID = &version.ID
	session.LastActivity = now
	if err := s.store.PutSession(ctx, session); err != nil {
		return domain.Version{}, err
	}
	if err := s.teardownSession(ctx, session); err != nil {
		return domain.Version{}, err
	}

	s.metrics.VersionsCommitted.Inc()
	s.metrics.SessionsCompleted.Inc()
	s.log.Info().
		Str("session_id", sessionID).
		Str("process_id", session.ProcessID).
		Str("version_id", version.ID).
		Str("number", version.Number).
		Msg("draft promoted to version")
	return version, nil
}

func (s *Service) commitContent(ctx context.Context, sessionID string, req CompleteRequest) (domain.DocumentContent, error) {
	if req.Content != nil {
		return req.Content.Clone(), nil
	}
	draft, err := s.store.GetDraft(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.DocumentContent{}, apperrors.WithMetadata(apperrors.CodeDraftNotFound,
				"session has no draft to commit", map[string]string{"sessionId": sessionID})
		}
		return domain.DocumentContent{}, err
	}
	return draft.Content, nil
}

func staleBaselineError(sessionID, baselineID, currentID string) error {
	meta := map[string]string{"sessionId": sessionID}
	if baselineID != "" {
		meta["baselineVersionId"] = baselineID
	}
	if currentID != "" {
		meta["currentVersionId"] = currentID
	}
	return apperrors.WithMetadata(apperrors.CodeStaleBaseline,
		"the current version changed since the session started", meta)
}

// renderChangeLog flattens a diff into the human-readable change log stored
// on the version, led by the author's comment.
func renderChangeLog(comment string, diff domain.Diff) string {
	var lines []string
	if strings.TrimSpace(comment) != "" {
		lines = append(lines, strings.TrimSpace(comment))
	}
	for _, change := range diff.Changes {
		if change.Field != domain.FieldSteps {
			lines = append(lines, fmt.Sprintf("%s %s", change.Field, change.Type))
			continue
		}
		counts := map[domain.ChangeType]int{}
		for _, step := range change.Steps {
			counts[step.Type]++
		}
		var parts []string
		for _, changeType := range []domain.ChangeType{
			domain.ChangeAdded, domain.ChangeModified, domain.ChangeDeleted, domain.ChangeMoved,
		} {
			if counts[changeType] > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", counts[changeType], changeType))
			}
		}
		lines = append(lines, "steps: "+strings.Join(parts, ", "))
	}
	if len(lines) == 0 {
		return "no changes"
	}
	return strings.Join(lines, "\n")
}

// CompareVersions diffs two stored versions of a process.
func (s *Service) CompareVersions(ctx context.Context, processID, fromVersionID, toVersionID string) (domain.Diff, error) {
	from, err := s.getVersion(ctx, processID, fromVersionID)
	if err != nil {
		return domain.Diff{}, err
	}
	to, err := s.getVersion(ctx, processID, toVersionID)
	if err != nil {
		return domain.Diff{}, err
	}
	return domain.Compare(from.Content, to.Content), nil
}

// CompareDraft diffs a stored version against the session's working draft.
func (s *Service) CompareDraft(ctx context.Context, sessionID, userID, versionID string) (domain.Diff, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return domain.Diff{}, err
	}
	draft, err := s.store.GetDraft(ctx, sessionID)
	if err != nil {
		return domain.Diff{}, err
	}
	version, err := s.getVersion(ctx, session.ProcessID, versionID)
	if err != nil {
		return domain.Diff{}, err
	}
	return domain.Compare(version.Content, draft.Content), nil
}

// PublishVersion marks a version published. The flag only moves forward.
func (s *Service) PublishVersion(ctx context.Context, processID, versionID, userID string) error {
	if userID == "" {
		return apperrors.New(apperrors.CodeUserRequired, "user id is required")
	}
	err := s.store.PublishVersion(ctx, processID, versionID, userID, s.now().UTC())
	if errors.Is(err, storage.ErrNotFound) {
		return versionNotFound(processID, versionID)
	}
	return err
}

// ListVersions returns a process's versions newest first.
func (s *Service) ListVersions(ctx context.Context, processID string) ([]domain.Version, error) {
	return s.store.ListVersions(ctx, processID)
}

// CurrentVersion returns the process's single current version.
func (s *Service) CurrentVersion(ctx context.Context, processID string) (domain.Version, error) {
	version, err := s.store.GetCurrentVersion(ctx, processID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Version{}, apperrors.WithMetadata(apperrors.CodeVersionNotFound,
			"process has no versions", map[string]string{"processId": processID})
	}
	return version, err
}

// GetVersion returns one version of a process.
func (s *Service) GetVersion(ctx context.Context, processID, versionID string) (domain.Version, error) {
	return s.getVersion(ctx, processID, versionID)
}

func (s *Service) getVersion(ctx context.Context, processID, versionID string) (domain.Version, error) {
	version, err := s.store.GetVersion(ctx, processID, versionID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Version{}, versionNotFound(processID, versionID)
	}
	return version, err
}

func versionNotFound(processID, versionID string) error {
	return apperrors.WithMetadata(apperrors.CodeVersionNotFound,
		"version not found", map[string]string{
			"processId": processID,
			"versionId": versionID,
		})
}
