package editor

import "strings"

// document is a text split into lines. Line numbers passed to its methods
// are 1-based and inclusive, matching parser line ranges.
type document struct {
	lines           []string
	trailingNewline bool
}

func splitDocument(text string) *document {
	if text == "" {
		return &document{}
	}
	d := &document{trailingNewline: strings.HasSuffix(text, "\n")}
	d.lines = strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	return d
}

func (d *document) String() string {
	if len(d.lines) == 0 {
		return ""
	}
	out := strings.Join(d.lines, "\n")
	if d.trailingNewline {
		out += "\n"
	}
	return out
}

// slice returns a copy of lines start..end.
func (d *document) slice(start, end int) []string {
	return append([]string(nil), d.lines[start-1:end]...)
}

func (d *document) replace(start, end int, with []string) {
	tail := append([]string(nil), d.lines[end:]...)
	d.lines = append(append(d.lines[:start-1], with...), tail...)
}

func (d *document) remove(start, end int) {
	d.replace(start, end, nil)
}

// insert places block before the line at 0-based index idx.
func (d *document) insert(idx int, block []string) {
	if idx > len(d.lines) {
		idx = len(d.lines)
	}
	tail := append([]string(nil), d.lines[idx:]...)
	d.lines = append(append(d.lines[:idx], block...), tail...)
}
