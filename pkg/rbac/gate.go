package rbac

import (
	"fmt"
	"strings"
)

// Mode selects how multiple required slugs combine.
type Mode int

const (
	// ModeAll requires every required slug to be present.
	ModeAll Mode = iota
	// ModeAny requires at least one required slug to be present.
	ModeAny
)

func (m Mode) String() string {
	if m == ModeAny {
		return "any"
	}
	return "all"
}

// Decision is the outcome of an authorization check. Denial is a value, not
// an error; callers short-circuit on it themselves.
type Decision struct {
	Allowed bool
	Reason  string
	Missing []string
}

// Authorize decides whether the effective set satisfies the requirement.
// It is pure: no I/O, no locking, no side effects.
func Authorize(effective PermissionSet, required []string, mode Mode) Decision {
	if len(required) == 0 {
		return Decision{Allowed: true, Reason: "no permission required"}
	}

	var missing []string
	matched := 0
	for _, slug := range required {
		if effective.Has(slug) {
			matched++
		} else {
			missing = append(missing, slug)
		}
	}

	switch mode {
	case ModeAny:
		if matched > 0 {
			return Decision{Allowed: true, Reason: "at least one required permission held"}
		}
	default:
		if matched == len(required) {
			return Decision{Allowed: true, Reason: "all required permissions held"}
		}
	}

	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("missing permissions (%s mode): %s", mode, strings.Join(missing, ", ")),
		Missing: missing,
	}
}

// AuthorizeOne is the single-slug form of Authorize.
func AuthorizeOne(effective PermissionSet, required string) Decision {
	return Authorize(effective, []string{required}, ModeAll)
}
