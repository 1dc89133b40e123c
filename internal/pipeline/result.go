package pipeline

import "tikdrop/internal/lookup"

// Result is the sole contract between the acquisition pipeline and
// the messaging layer. Files are ordered with the primary media
// first and the companion audio track, when present, last; the
// messaging layer branches presentation purely on Kind and the file
// extensions. Error carries a user-facing explanation when Success
// is false, in which case Files is always empty.
type Result struct {
	Success bool
	Kind    lookup.Kind
	Files   []string
	Title   string
	Author  string
	Error   string
}

func failure(kind lookup.Kind, message string) Result {
	return Result{Kind: kind, Error: message}
}
