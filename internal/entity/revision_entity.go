package entity

import (
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RevisionSource names the write that produced a revision.
type RevisionSource string

const (
	RevisionSourceDraft  RevisionSource = "draft"
	RevisionSourceEdit   RevisionSource = "edit"
	RevisionSourceRevert RevisionSource = "revert"
)

// Revision is a snapshot of an edition's content taken right after a
// content write. Sequence counts from 1 per edition.
type Revision struct {
	Id        uuid.UUID
	EditionId uuid.UUID
	Sequence  int
	Source    RevisionSource
	TriggerId uuid.UUID
	Content   map[string]any
	Summary   string
	CreatedAt time.Time
}

// Section change states reported by DiffRevisions.
const (
	SectionAdded     = "added"
	SectionRemoved   = "removed"
	SectionChanged   = "changed"
	SectionUnchanged = "unchanged"
)

type RevisionDiff struct {
	RevisionId uuid.UUID
	Sections   map[string]string
}

// DiffRevisions compares each revision with the one before it, section by
// section. revs must be in sequence order; the first one reports every
// non-empty section as added.
func DiffRevisions(revs []*Revision) []RevisionDiff {
	out := make([]RevisionDiff, 0, len(revs))
	for i, rev := range revs {
		sections := map[string]string{}
		if i == 0 {
			for name, v := range rev.Content {
				if !isEmptySection(v) {
					sections[name] = SectionAdded
				}
			}
			out = append(out, RevisionDiff{RevisionId: rev.Id, Sections: sections})
			continue
		}

		prev := revs[i-1]
		for _, name := range sectionNames(prev.Content, rev.Content) {
			old, hadOld := prev.Content[name]
			cur, hasCur := rev.Content[name]
			switch {
			case !hadOld && hasCur:
				sections[name] = SectionAdded
			case hadOld && !hasCur:
				sections[name] = SectionRemoved
			case !reflect.DeepEqual(old, cur):
				sections[name] = SectionChanged
			default:
				sections[name] = SectionUnchanged
			}
		}
		out = append(out, RevisionDiff{RevisionId: rev.Id, Sections: sections})
	}
	return out
}

func sectionNames(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func isEmptySection(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

// CloneContent copies the top level of an edition content map.
func CloneContent(content map[string]any) map[string]any {
	out := make(map[string]any, len(content))
	for k, v := range content {
		out[k] = v
	}
	return out
}
