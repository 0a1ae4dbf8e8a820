package status

import (
	"log/slog"
	"path"
	"path/filepath"
	"strings"
)

type Reconciler struct {
	root   string
	logger *slog.Logger
}

// NewReconciler returns a reconciler resolving absolute paths against root.
func NewReconciler(root string, logger *slog.Logger) *Reconciler {
	return &Reconciler{root: root, logger: logger}
}

// Reconcile merges the two change lists into one FileView per path. Index
// records are applied first and are never replaced by a working-tree record
// for the same path. Output follows insertion order.
func (r *Reconciler) Reconcile(index, worktree []ChangeRecord) []FileView {
	files := make([]FileView, 0, len(index)+len(worktree))
	pos := make(map[string]int, len(index)+len(worktree))

	apply := func(rec ChangeRecord, staged bool) {
		p, ok := r.normalize(rec.Path)
		if !ok {
			r.logger.Warn("dropping change with unresolvable path", "path", rec.Path, "origin", rec.Origin.String())
			return
		}

		i, exists := pos[p]
		if exists && !staged {
			return
		}

		view := FileView{Path: p, Status: Categorize(rec.Code), IsStaged: staged}
		if exists {
			files[i] = view
			return
		}
		pos[p] = len(files)
		files = append(files, view)
	}

	for _, rec := range index {
		apply(rec, true)
	}
	for _, rec := range worktree {
		apply(rec, false)
	}

	return files
}

func (r *Reconciler) normalize(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", false
	}

	if filepath.IsAbs(p) {
		if r.root == "" {
			return "", false
		}
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return "", false
		}
		p = rel
	}

	p = path.Clean(filepath.ToSlash(p))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return "", false
	}
	return p, true
}
