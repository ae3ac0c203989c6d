package taskservice

import (
	"context"
	"slices"
	"strings"

	"github.com/starford/mdboard/internal/checksum"
	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/parser"
)

// Board is the kanban view of one document.
type Board struct {
	Document string             `json:"document"`
	Checksum string             `json:"checksum"`
	Config   models.BoardConfig `json:"config"`
	Columns  []Column           `json:"columns"`
	Headings []parser.Heading   `json:"headings"`
	Warnings []string           `json:"warnings"`
}

// Column holds the tasks of one status.
type Column struct {
	Status string        `json:"status"`
	Done   bool          `json:"done"`
	Tasks  []parser.Task `json:"tasks"`
}

// Board groups a document's tasks into status columns. Configured statuses
// come first in their configured order; any other status found in the
// document gets a trailing column in order of first appearance.
func (s *Service) Board(_ context.Context, document string) (*Board, error) {
	data, res, err := s.load(document)
	if err != nil {
		return nil, err
	}
	cfg := models.ResolveConfig(res.Config, s.fallback)

	return &Board{
		Document: document,
		Checksum: checksum.Sum(data),
		Config:   cfg,
		Columns:  buildColumns(res.Tasks, cfg),
		Headings: nonNilSlice(res.Headings),
		Warnings: nonNilSlice(res.Warnings),
	}, nil
}

func buildColumns(tasks []parser.Task, cfg models.BoardConfig) []Column {
	var columns []Column
	pos := map[string]int{}
	add := func(status string) int {
		st, err := models.NewStatus(status)
		if err != nil {
			return -1
		}
		if i, ok := pos[st.String()]; ok {
			return i
		}
		pos[st.String()] = len(columns)
		columns = append(columns, Column{
			Status: st.String(),
			Done:   st.In(cfg.DoneStatuses),
			Tasks:  []parser.Task{},
		})
		return len(columns) - 1
	}

	for _, s := range cfg.Statuses {
		add(s)
	}
	for _, t := range tasks {
		i := add(t.Status.String())
		columns[i].Tasks = append(columns[i].Tasks, t)
	}
	for i := range columns {
		sortTasks(columns[i].Tasks, cfg.SortBy)
	}
	return columns
}

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// sortTasks orders a column in place. Ties keep document order.
func sortTasks(tasks []parser.Task, sortBy string) {
	switch sortBy {
	case models.SortPriority:
		slices.SortStableFunc(tasks, func(a, b parser.Task) int {
			return rank(a) - rank(b)
		})
	case models.SortDue:
		slices.SortStableFunc(tasks, func(a, b parser.Task) int {
			da, db := a.Metadata["due"], b.Metadata["due"]
			switch {
			case da == db:
				return 0
			case da == "":
				return 1
			case db == "":
				return -1
			}
			return strings.Compare(da, db)
		})
	case models.SortAlphabetical:
		slices.SortStableFunc(tasks, func(a, b parser.Task) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	}
}

func rank(t parser.Task) int {
	if r, ok := priorityRank[strings.ToLower(strings.TrimSpace(t.Metadata["priority"]))]; ok {
		return r
	}
	return len(priorityRank)
}
