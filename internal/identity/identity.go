// Package identity defines the addressing key for virtual file content and the
// codec that turns it into an opaque token.
package identity

import "fmt"

// Side selects which half of a diff a piece of content belongs to.
type Side string

const (
	SideUnspecified Side = ""
	SideBoth        Side = "BOTH"
	SideBase        Side = "BASE"
	SideLeft        Side = "LEFT"
	SideRight       Side = "RIGHT"
)

func (s Side) Valid() bool {
	switch s {
	case SideUnspecified, SideBoth, SideBase, SideLeft, SideRight:
		return true
	}
	return false
}

// OneSided reports whether the side names a single half of a diff, the only
// case in which a base revision is meaningful.
func (s Side) OneSided() bool {
	return s == SideBase || s == SideLeft || s == SideRight
}

// ParseSide accepts the upper-case names and the empty string.
func ParseSide(s string) (Side, error) {
	side := Side(s)
	if !side.Valid() {
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidIdentity, s)
	}
	return side, nil
}

// FileIdentity addresses the content of one file at one revision.
// Values are never mutated after construction; use the With* helpers.
type FileIdentity struct {
	Project      string
	ChangeID     string
	Commit       string
	FilePath     string
	Side         Side
	BaseRevision *int
}

// IsEmpty reports whether the identity stands for "no content on this side",
// e.g. the old side of an added file.
func (id FileIdentity) IsEmpty() bool {
	return id.Commit == ""
}

func (id FileIdentity) Equal(other FileIdentity) bool {
	if id.Project != other.Project ||
		id.ChangeID != other.ChangeID ||
		id.Commit != other.Commit ||
		id.FilePath != other.FilePath ||
		id.Side != other.Side {
		return false
	}
	if id.BaseRevision == nil || other.BaseRevision == nil {
		return id.BaseRevision == nil && other.BaseRevision == nil
	}
	return *id.BaseRevision == *other.BaseRevision
}

// WithSide returns a copy addressed to the given side and base revision.
func (id FileIdentity) WithSide(side Side, base *int) FileIdentity {
	out := id
	out.Side = side
	out.BaseRevision = nil
	if base != nil {
		b := *base
		out.BaseRevision = &b
	}
	return out
}

// Validate checks the invariants enforced by Encode.
func (id FileIdentity) Validate() error {
	if id.FilePath == "" {
		return fmt.Errorf("%w: empty file path", ErrInvalidIdentity)
	}
	if !id.Side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidIdentity, string(id.Side))
	}
	if id.BaseRevision != nil {
		if !id.Side.OneSided() {
			return fmt.Errorf("%w: base revision requires a one-sided diff, got side %q",
				ErrInvalidIdentity, string(id.Side))
		}
		if *id.BaseRevision < 1 {
			return fmt.Errorf("%w: base revision %d out of range", ErrInvalidIdentity, *id.BaseRevision)
		}
	}
	return nil
}

func (id FileIdentity) String() string {
	base := "-"
	if id.BaseRevision != nil {
		base = fmt.Sprint(*id.BaseRevision)
	}
	return fmt.Sprintf("%s/%s@%s:%s[%s,%s]", id.Project, id.ChangeID, id.Commit, id.FilePath, id.Side, base)
}

// Revision is a convenience for building a *int base revision.
func Revision(n int) *int {
	return &n
}
