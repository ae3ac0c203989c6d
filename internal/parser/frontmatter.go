package parser

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/mdboard/internal/models"
)

const fmDelim = "---"

// frontmatter is the result of splitting a document into its leading YAML
// block and the Markdown body that follows it.
type frontmatter struct {
	Config *models.FrontmatterConfig
	Body   string
	// LineOffset is the number of lines consumed before Body starts.
	LineOffset int
}

// Frontmatter extracts only the `kanban:` configuration from src.
// It returns nil when the document has no front-matter or no kanban block.
func Frontmatter(src string) (*models.FrontmatterConfig, error) {
	fm, err := splitFrontmatter(src)
	if err != nil {
		return nil, err
	}
	return fm.Config, nil
}

// splitFrontmatter separates YAML front-matter (between a leading --- line and
// the next --- line) from the Markdown body. A document without a closing
// delimiter has no front-matter.
func splitFrontmatter(src string) (frontmatter, error) {
	lines := strings.Split(src, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r") != fmDelim {
		return frontmatter{Body: src}, nil
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r") == fmDelim {
			closing = i
			break
		}
	}
	if closing < 0 {
		return frontmatter{Body: src}, nil
	}

	block := strings.Join(lines[1:closing], "\n")
	body := strings.Join(lines[closing+1:], "\n")

	var data any
	if err := yaml.Unmarshal([]byte(block), &data); err != nil {
		return frontmatter{}, &ParseError{Line: 1, Err: err}
	}

	return frontmatter{
		Config:     extractConfig(data),
		Body:       body,
		LineOffset: closing + 1,
	}, nil
}

// extractConfig reads the `kanban:` block. Fields with an unexpected type are
// treated as unset.
func extractConfig(data any) *models.FrontmatterConfig {
	root, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	kanban, ok := root["kanban"].(map[string]any)
	if !ok {
		return nil
	}

	cfg := &models.FrontmatterConfig{
		Statuses:          stringList(lookup(kanban, "statuses")),
		DoneStatuses:      stringList(lookup(kanban, "doneStatuses", "done_statuses")),
		DefaultStatus:     stringValue(lookup(kanban, "defaultStatus", "default_status")),
		DefaultDoneStatus: stringValue(lookup(kanban, "defaultDoneStatus", "default_done_status")),
		SortBy:            stringValue(lookup(kanban, "sortBy", "sort_by")),
	}
	if b, ok := lookup(kanban, "syncCheckboxWithDone", "sync_checkbox_with_done").(bool); ok {
		cfg.SyncCheckboxWithDone = &b
	}
	return cfg
}

// lookup returns the first present key.
func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
