// Package search maintains a derived, rank-ordered index over content
// entries, registered links and stored files. The index is a cache of the
// authoritative stores and can be rebuilt from them at any time.
package search

import "fmt"

// Kind ranks index entries. Link-like kinds occupy 0-2 and sort before
// file-like kinds at 100+; the gap is reserved for future file formats and
// the numeric values never change.
type Kind int

const (
	KindLocalLink Kind = 0
	KindLink      Kind = 1
	KindPage      Kind = 2

	KindCourse Kind = 100
	KindFile   Kind = 101
)

func (k Kind) String() string {
	switch k {
	case KindLocalLink:
		return "local_link"
	case KindLink:
		return "link"
	case KindPage:
		return "page"
	case KindCourse:
		return "course"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known discriminants.
func (k Kind) Valid() bool {
	switch k {
	case KindLocalLink, KindLink, KindPage, KindCourse, KindFile:
		return true
	}
	return false
}

// Entry is one row of the index, keyed by (kind, url). RequiredPermission
// gates visibility but is excluded from the sort order, so entries under
// different permission gates still sort deterministically.
type Entry struct {
	Kind               Kind   `json:"kind"`
	Title              string `json:"title"`
	URL                string `json:"url"`
	RequiredPermission string `json:"required_permission,omitempty"`
}

// Less establishes the total order: kind ascending, then title lexicographic.
func (e Entry) Less(other Entry) bool {
	if e.Kind != other.Kind {
		return e.Kind < other.Kind
	}
	return e.Title < other.Title
}
