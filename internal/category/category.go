package category

import (
	"fmt"
	"strings"
)

type Category int

const (
	Problem Category = iota + 1
	Cause
	Solution
	Other
)

type entry struct {
	category Category
	label    string
	command  string
}

// table is the single source for labels, commands and reaction keys.
// Reaction keys are the labels.
var table = []entry{
	{category: Problem, label: "Problem", command: "problem"},
	{category: Cause, label: "Ursache", command: "ursache"},
	{category: Solution, label: "Lösung", command: "lösung"},
	{category: Other, label: "O", command: "o"},
}

// labelAliases maps additional classifier labels onto the vocabulary.
var labelAliases = map[string]Category{
	"cause":    Cause,
	"solution": Solution,
	"other":    Other,
}

func All() []Category {
	out := make([]Category, 0, len(table))
	for _, e := range table {
		out = append(out, e.category)
	}
	return out
}

// Others returns every category except c, in table order.
func Others(c Category) []Category {
	out := make([]Category, 0, len(table)-1)
	for _, e := range table {
		if e.category != c {
			out = append(out, e.category)
		}
	}
	return out
}

func (c Category) String() string {
	for _, e := range table {
		if e.category == c {
			return e.label
		}
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

func (c Category) Command() string {
	for _, e := range table {
		if e.category == c {
			return e.command
		}
	}
	return ""
}

func (c Category) ReactionKey() string {
	return c.String()
}

func (c Category) Valid() bool {
	return c >= Problem && c <= Other
}

// Forwarded reports whether confirmed messages of this category go to the tracking service.
func (c Category) Forwarded() bool {
	return c.Valid() && c != Other
}

// ParseLabel maps a stored or classifier-provided label to a Category.
func ParseLabel(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, e := range table {
		if strings.EqualFold(e.label, s) {
			return e.category, nil
		}
	}
	if c, ok := labelAliases[strings.ToLower(s)]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("unknown category label %q", s)
}

// ParseCommand maps a command word such as "lösung" (any case) to a Category.
func ParseCommand(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, e := range table {
		if e.command == s {
			return e.category, true
		}
	}
	return 0, false
}

// ParseReactionKey maps a reaction key back to a Category.
func ParseReactionKey(s string) (Category, bool) {
	for _, e := range table {
		if e.label == s {
			return e.category, true
		}
	}
	return 0, false
}
