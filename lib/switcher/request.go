package switcher

import (
	"fmt"
	"strconv"

	"sourcerer/lib/source"
)

// Ref identifies a source by list index and name. Temporary sources carry
// index -1.
type Ref struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

const TemporaryIndex = -1

func (r Ref) IsTemporary() bool { return r.Index == TemporaryIndex }

func (r Ref) String() string {
	if r.IsTemporary() {
		return fmt.Sprintf("temporary %q", r.Name)
	}
	return fmt.Sprintf("%d %q", r.Index, r.Name)
}

// Target is a resolved take: the reference plus the source data as it was
// when resolved.
type Target struct {
	Ref
	Source *source.Source `json:"-"`
}

type requestKind uint8

const (
	byIndex requestKind = iota
	byName
	byIdentifier
	byData
)

// Request names the source a take should switch to. It is resolved against
// the list when the take starts, so queued requests see list edits.
type Request struct {
	kind  requestKind
	index int
	name  string
	data  *source.Source
}

func ByIndex(index int) Request { return Request{kind: byIndex, index: index} }

func ByName(name string) Request { return Request{kind: byName, name: name} }

// Identifier resolves id as an index if it parses as one in range, otherwise
// as a name.
func Identifier(id string) Request { return Request{kind: byIdentifier, name: id} }

// Temporary takes inline source data that is not part of the list.
func Temporary(s *source.Source) Request {
	if s != nil {
		s = s.Clone()
	}
	return Request{kind: byData, data: s}
}

func (r Request) String() string {
	switch r.kind {
	case byIndex:
		return strconv.Itoa(r.index)
	case byData:
		if r.data == nil {
			return "temporary <nil>"
		}
		return "temporary " + strconv.Quote(r.data.Name)
	default:
		return strconv.Quote(r.name)
	}
}

func (r Request) equal(o Request) bool {
	return r.kind == o.kind && r.index == o.index && r.name == o.name && r.data == o.data
}

func (r Request) resolve(list *source.List) (Target, error) {
	switch r.kind {
	case byIndex:
		s, err := list.Get(r.index)
		if err != nil {
			return Target{}, err
		}
		return Target{Ref: Ref{Index: r.index, Name: s.Name}, Source: s}, nil

	case byName:
		s, i, err := list.Find(r.name)
		if err != nil {
			return Target{}, err
		}
		return Target{Ref: Ref{Index: i, Name: s.Name}, Source: s}, nil

	case byIdentifier:
		if n, err := strconv.Atoi(r.name); err == nil {
			if s, err := list.Get(n); err == nil {
				return Target{Ref: Ref{Index: n, Name: s.Name}, Source: s}, nil
			}
		}
		return ByName(r.name).resolve(list)

	case byData:
		if err := r.data.Validate(); err != nil {
			return Target{}, err
		}
		s := r.data.Clone()
		return Target{Ref: Ref{Index: TemporaryIndex, Name: s.Name}, Source: s}, nil
	}
	return Target{}, fmt.Errorf("switcher: unknown request kind %d", r.kind)
}

// Resolve looks req up in list the way a take would.
func Resolve(list *source.List, req Request) (Target, error) {
	return req.resolve(list)
}
