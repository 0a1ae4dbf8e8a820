package git

import (
	"strings"

	"github.com/marcin-skalski/gitdesk/internal/status"
)

var unmergedCodes = map[string]status.Code{
	"DD": status.BothDeleted,
	"AU": status.AddedByUs,
	"UD": status.DeletedByThem,
	"UA": status.AddedByThem,
	"DU": status.DeletedByUs,
	"AA": status.BothAdded,
	"UU": status.BothModified,
}

var indexCodes = map[byte]status.Code{
	'M': status.IndexModified,
	'T': status.IndexModified,
	'A': status.IndexAdded,
	'D': status.IndexDeleted,
	'R': status.IndexRenamed,
	'C': status.IndexCopied,
}

var worktreeCodes = map[byte]status.Code{
	'M': status.Modified,
	'T': status.Modified,
	'D': status.Deleted,
	'A': status.IntentToAdd,
}

// ParsePorcelain splits `git status --porcelain=v1 -z` output into index and
// working-tree change lists. Ignored entries are skipped.
func ParsePorcelain(out string) (index, worktree []status.ChangeRecord) {
	entries := strings.Split(out, "\x00")
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if len(e) < 4 {
			continue
		}
		xy, p := e[:2], e[3:]

		// Renames and copies carry the source path as the next entry.
		if xy[0] == 'R' || xy[0] == 'C' {
			i++
		}

		switch {
		case xy == "??":
			worktree = append(worktree, status.ChangeRecord{Path: p, Code: status.Untracked, Origin: status.OriginWorkingTree})
			continue
		case xy == "!!":
			continue
		}

		if code, ok := unmergedCodes[xy]; ok {
			worktree = append(worktree, status.ChangeRecord{Path: p, Code: code, Origin: status.OriginWorkingTree})
			continue
		}

		if code, ok := indexCodes[xy[0]]; ok {
			index = append(index, status.ChangeRecord{Path: p, Code: code, Origin: status.OriginIndex})
		}
		if code, ok := worktreeCodes[xy[1]]; ok {
			worktree = append(worktree, status.ChangeRecord{Path: p, Code: code, Origin: status.OriginWorkingTree})
		}
	}
	return index, worktree
}
