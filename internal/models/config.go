package models

import "strings"

// Sort orders for tasks inside a board column.
const (
	SortMarkdown     = "markdown"
	SortPriority     = "priority"
	SortDue          = "due"
	SortAlphabetical = "alphabetical"
)

// Hard defaults used when neither the document nor the fallback source sets a field.
const (
	DefaultStatus     = "todo"
	DefaultDoneStatus = "done"
)

// SortOrders lists the accepted sort keys.
var SortOrders = []string{SortMarkdown, SortPriority, SortDue, SortAlphabetical}

// BoardConfig is a fully resolved board configuration.
type BoardConfig struct {
	Statuses             []string `json:"statuses" yaml:"statuses"`
	DoneStatuses         []string `json:"done_statuses" yaml:"done_statuses"`
	DefaultStatus        string   `json:"default_status" yaml:"default_status"`
	DefaultDoneStatus    string   `json:"default_done_status" yaml:"default_done_status"`
	SortBy               string   `json:"sort_by" yaml:"sort_by"`
	SyncCheckboxWithDone bool     `json:"sync_checkbox_with_done" yaml:"sync_checkbox_with_done"`
}

// DefaultBoardConfig returns the hard-coded configuration.
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		Statuses:             []string{"todo", "in-progress", "done"},
		DoneStatuses:         []string{DefaultDoneStatus},
		DefaultStatus:        DefaultStatus,
		DefaultDoneStatus:    DefaultDoneStatus,
		SortBy:               SortMarkdown,
		SyncCheckboxWithDone: true,
	}
}

// DoneSet returns the statuses that drive checkbox state during edits, or nil
// when checkbox syncing is disabled.
func (c BoardConfig) DoneSet() []string {
	if !c.SyncCheckboxWithDone {
		return nil
	}
	return c.DoneStatuses
}

// FrontmatterConfig is the optional, partially populated `kanban:` block of a
// document. Nil or empty fields are unset.
type FrontmatterConfig struct {
	Statuses             []string `json:"statuses,omitempty"`
	DoneStatuses         []string `json:"done_statuses,omitempty"`
	DefaultStatus        string   `json:"default_status,omitempty"`
	DefaultDoneStatus    string   `json:"default_done_status,omitempty"`
	SortBy               string   `json:"sort_by,omitempty"`
	SyncCheckboxWithDone *bool    `json:"sync_checkbox_with_done,omitempty"`
}

// ResolveConfig merges fm over fallback field by field. Any fallback field
// left empty is filled from DefaultBoardConfig.
func ResolveConfig(fm *FrontmatterConfig, fallback BoardConfig) BoardConfig {
	out := fillDefaults(fallback)
	if fm == nil {
		return out
	}
	if len(fm.Statuses) > 0 {
		out.Statuses = append([]string(nil), fm.Statuses...)
	}
	if len(fm.DoneStatuses) > 0 {
		out.DoneStatuses = append([]string(nil), fm.DoneStatuses...)
	}
	if strings.TrimSpace(fm.DefaultStatus) != "" {
		out.DefaultStatus = fm.DefaultStatus
	}
	if strings.TrimSpace(fm.DefaultDoneStatus) != "" {
		out.DefaultDoneStatus = fm.DefaultDoneStatus
	}
	if IsSortOrder(fm.SortBy) {
		out.SortBy = fm.SortBy
	}
	if fm.SyncCheckboxWithDone != nil {
		out.SyncCheckboxWithDone = *fm.SyncCheckboxWithDone
	}
	return out
}

func fillDefaults(c BoardConfig) BoardConfig {
	def := DefaultBoardConfig()
	if len(c.Statuses) == 0 {
		c.Statuses = def.Statuses
	}
	if len(c.DoneStatuses) == 0 {
		c.DoneStatuses = def.DoneStatuses
	}
	if strings.TrimSpace(c.DefaultStatus) == "" {
		c.DefaultStatus = def.DefaultStatus
	}
	if strings.TrimSpace(c.DefaultDoneStatus) == "" {
		c.DefaultDoneStatus = def.DefaultDoneStatus
	}
	if !IsSortOrder(c.SortBy) {
		c.SortBy = def.SortBy
	}
	return c
}

// IsSortOrder reports whether s is one of SortOrders.
func IsSortOrder(s string) bool {
	for _, o := range SortOrders {
		if s == o {
			return true
		}
	}
	return false
}
