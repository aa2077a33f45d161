package statusweb

import "github.com/ervinoro/dintact/internal/change"

// Event is one message pushed to every connected dashboard client.
type Event struct {
	Type    string       `json:"type"` // "progress", "message", "changes", or "error"
	Current int64        `json:"current,omitempty"`
	Total   int64        `json:"total,omitempty"`
	Message string       `json:"message,omitempty"`
	Changes []ChangeView `json:"changes,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ChangeView is the JSON-friendly projection of a change.Change; the
// interface itself carries no exported fields to marshal.
type ChangeView struct {
	Path    string `json:"path"`
	HasBeen string `json:"hasBeen"`
	Action  string `json:"action"`
	Size    int64  `json:"size"`
}

func changeViews(changes []change.Change) []ChangeView {
	views := make([]ChangeView, len(changes))
	for i, c := range changes {
		views[i] = ChangeView{Path: c.Path(), HasBeen: c.HasBeen(), Action: c.Action(), Size: c.Size()}
	}
	return views
}
