// Package status turns the overlapping index and working-tree change lists
// reported by a git backend into one view entry per file.
package status

import (
	"time"
)

// Origin says which side of the repository a change was reported for.
type Origin int

const (
	OriginIndex Origin = iota
	OriginWorkingTree
)

func (o Origin) String() string {
	if o == OriginIndex {
		return "index"
	}
	return "workingTree"
}

// Code is the raw change code a backend attaches to a path.
type Code int

const (
	IndexModified Code = iota
	IndexAdded
	IndexDeleted
	IndexRenamed
	IndexCopied
	Modified
	Deleted
	Untracked
	Ignored
	IntentToAdd
	AddedByUs
	AddedByThem
	DeletedByUs
	DeletedByThem
	BothAdded
	BothDeleted
	BothModified
)

// Category is the visible status of a file.
type Category string

const (
	CategoryAdded     Category = "added"
	CategoryModified  Category = "modified"
	CategoryDeleted   Category = "deleted"
	CategoryUntracked Category = "untracked"
	CategoryUnknown   Category = "unknown"
)

var categories = map[Code]Category{
	IndexAdded:    CategoryAdded,
	AddedByUs:     CategoryAdded,
	AddedByThem:   CategoryAdded,
	IndexModified: CategoryModified,
	Modified:      CategoryModified,
	BothModified:  CategoryModified,
	IndexDeleted:  CategoryDeleted,
	Deleted:       CategoryDeleted,
	DeletedByUs:   CategoryDeleted,
	DeletedByThem: CategoryDeleted,
	Untracked:     CategoryUntracked,
}

// Categorize maps a raw code to its category; unmapped codes are unknown.
func Categorize(code Code) Category {
	if c, ok := categories[code]; ok {
		return c
	}
	return CategoryUnknown
}

// ChangeRecord is one entry of a backend change list. It only lives for a
// single refresh cycle.
type ChangeRecord struct {
	Path   string
	Code   Code
	Origin Origin
}

// FileView is what the UI renders for a path.
type FileView struct {
	Path     string   `json:"path"`
	Status   Category `json:"status"`
	IsStaged bool     `json:"isStaged"`
}

// Snapshot is the repository state produced by one refresh. It must not be
// modified after publication; Clone before handing it to another owner.
type Snapshot struct {
	Files   []FileView `json:"files"`
	Branch  string     `json:"branch"`
	Ahead   int        `json:"ahead"`
	Behind  int        `json:"behind"`
	Error   string     `json:"error,omitempty"`
	Seq     uint64     `json:"seq"`
	TakenAt time.Time  `json:"takenAt"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Files != nil {
		out.Files = append([]FileView(nil), s.Files...)
	}
	return out
}

// Counts returns the number of staged and unstaged entries.
func (s Snapshot) Counts() (staged, unstaged int) {
	for _, f := range s.Files {
		if f.IsStaged {
			staged++
		} else {
			unstaged++
		}
	}
	return staged, unstaged
}

// Uncommitted is the number of files with any pending change.
func (s Snapshot) Uncommitted() int {
	return len(s.Files)
}
