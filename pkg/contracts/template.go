package contracts

import "time"

// Template is a read-only snapshot of a checklist template. Sections and
// items are immutable for the lifetime of any inspection referencing them;
// authoring happens in an external system.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Template struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version"`
	Sections    []TemplateSection `json:"sections"`
	CreatedAt   time.Time         `json:"created_at"`
}

// TemplateSection groups ordered items under a title.
type TemplateSection struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Items []TemplateItem `json:"items"`
}

// TemplateItem is a single checklist question.
type TemplateItem struct {
	ID                     string `json:"id"`
	Prompt                 string `json:"prompt"`
	Required               bool   `json:"required"`
	EvidenceRequiredOnFail bool   `json:"evidence_required_on_fail"`
}

// FlatItems returns all items in section order, item order preserved.
func (t *Template) FlatItems() []TemplateItem {
	var items []TemplateItem
	for _, s := range t.Sections {
		items = append(items, s.Items...)
	}
	return items
}

// Item returns the item with the given id, or nil if the template does not
// contain it.
func (t *Template) Item(id string) *TemplateItem {
	for si := range t.Sections {
		for ii := range t.Sections[si].Items {
			if t.Sections[si].Items[ii].ID == id {
				return &t.Sections[si].Items[ii]
			}
		}
	}
	return nil
}
