package domain

// History is a bounded per-session undo/redo stack of draft snapshots.
// It lives only for the lifetime of the session and is never persisted.
type History struct {
	limit int
	undo  []DocumentContent
	redo  []DocumentContent
}

// DefaultHistoryDepth bounds the undo stack when no depth is configured.
const DefaultHistoryDepth = 20

// NewHistory creates an empty history bounded to limit snapshots.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryDepth
	}
	return &History{limit: limit}
}

// Record pushes the snapshot that a draft mutation is about to replace.
// Recording clears the redo stack: a new edit forks history.
func (h *History) Record(snapshot DocumentContent) {
	h.undo = append(h.undo, snapshot.Clone())
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
}

// Undo restores the most recent snapshot, moving the current content onto
// the redo stack. It reports false when there is nothing to undo.
func (h *History) Undo(current DocumentContent) (DocumentContent, bool) {
	if len(h.undo) == 0 {
		return DocumentContent{}, false
	}
	restored := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current.Clone())
	return restored, true
}

// Redo is the inverse of Undo. It reports false when there is nothing to redo.
func (h *History) Redo(current DocumentContent) (DocumentContent, bool) {
	if len(h.redo) == 0 {
		return DocumentContent{}, false
	}
	restored := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current.Clone())
	return restored, true
}

// Depths returns the current undo and redo stack sizes.
func (h *History) Depths() (undoDepth, redoDepth int) {
	return len(h.undo), len(h.redo)
}
