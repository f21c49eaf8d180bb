// Package corpus merges extracted sources and form fields into the single
// labeled text every prompt is built from.
package corpus

import (
	"strings"
)

// Section labels in canonical order.
const (
	LabelCompany         = "COMPANY DETAILS"
	LabelGrant           = "GRANT DETAILS"
	LabelAttachments     = "COMPANY ATTACHMENTS"
	LabelBudget          = "BUDGET DETAILS"
	LabelGuidelines      = "GRANT GUIDELINES TEXT"
	LabelApplicationForm = "APPLICATION FORM TEXT"
)

const sectionSeparator = "\n\n"

// CanonicalOrder is the fixed order sections appear in. Prompts rely on it.
var CanonicalOrder = []string{
	LabelCompany,
	LabelGrant,
	LabelAttachments,
	LabelBudget,
	LabelGuidelines,
	LabelApplicationForm,
}

type Section struct {
	Label string `json:"label"`
	Body  string `json:"body"`
}

func (s Section) String() string {
	return "---\n" + s.Label + ":\n" + s.Body
}

// Corpus is an immutable, ordered set of non-empty sections.
type Corpus struct {
	sections []Section
}

// Sections returns a copy of the sections in canonical order.
func (c Corpus) Sections() []Section {
	return append([]Section(nil), c.sections...)
}

// Section returns the body stored under label.
func (c Corpus) Section(label string) (string, bool) {
	for _, s := range c.sections {
		if s.Label == label {
			return s.Body, true
		}
	}
	return "", false
}

func (c Corpus) Has(label string) bool {
	_, ok := c.Section(label)
	return ok
}

func (c Corpus) Empty() bool {
	return len(c.sections) == 0
}

// String renders the corpus. Equal inputs always render byte-identical text.
func (c Corpus) String() string {
	parts := make([]string, len(c.sections))
	for i, s := range c.sections {
		parts[i] = s.String()
	}
	return strings.Join(parts, sectionSeparator)
}

func fromBodies(bodies map[string]string) Corpus {
	var out []Section
	for _, label := range CanonicalOrder {
		body := strings.TrimSpace(bodies[label])
		if body == "" {
			continue
		}
		out = append(out, Section{Label: label, Body: body})
	}
	return Corpus{sections: out}
}

// Field returns the value of a "- Name: value" line inside a section.
func (c Corpus) Field(label, name string) string {
	body, ok := c.Section(label)
	if !ok {
		return ""
	}
	prefix := "- " + name + ":"
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}
