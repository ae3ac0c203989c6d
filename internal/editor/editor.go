// Package editor applies create, update, move and delete requests to a board
// document. Every call re-parses the text it is given and returns a new text;
// lines outside the affected task are left as they were.
package editor

import (
	"regexp"
	"strings"

	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/parser"
)

var (
	taskLineRe   = regexp.MustCompile(`^(\s*(?:[-*+]|\d+[.)])\s+\[)([ \txX])(\]\s*)(.*)$`)
	listItemRe   = regexp.MustCompile(`^(\s*)(?:[-*+]|\d+[.)])\s`)
	statusLineRe = regexp.MustCompile(`^(\s*(?:[-*+]|\d+[.)])\s+)status\s*:.*$`)
	headingRe    = regexp.MustCompile(`^ {0,3}#{1,6}(\s|$)`)
)

const defaultMetaIndent = "  "

// Edit is a single request. Exactly one of Create or TaskID is set.
// For a TaskID request, Delete removes the task; otherwise any combination
// of NewTitle, NewStatus and NewPath is applied.
type Edit struct {
	TaskID    models.TaskID
	NewTitle  string
	NewStatus models.Status
	NewPath   *models.Path
	Delete    bool
	Create    *Create

	// DoneStatuses decides the checkbox for a status. When nil, updates leave
	// the checkbox alone and new tasks start unchecked.
	DoneStatuses []string
}

// Create describes a new task.
type Create struct {
	Title  string
	Path   models.Path
	Status models.Status
}

// Apply runs e against text and returns the resulting text.
func Apply(text string, e Edit) (string, error) {
	if e.Create != nil {
		if e.TaskID != "" || e.Delete {
			return "", &SerializerError{Kind: KindInvalidRequest}
		}
		return create(text, *e.Create, e.DoneStatuses)
	}
	if e.TaskID == "" {
		return "", &SerializerError{Kind: KindMissingTaskID}
	}

	res, err := parser.Parse(text)
	if err != nil {
		return "", &SerializerError{Kind: KindParseFailed, Err: err}
	}
	task, ok := res.FindTask(e.TaskID)
	if !ok {
		return "", &SerializerError{Kind: KindTaskNotFound, TaskID: e.TaskID}
	}

	doc := splitDocument(text)
	if e.Delete {
		doc.remove(task.StartLine, task.EndLine)
		return doc.String(), nil
	}

	moving := e.NewPath != nil && !e.NewPath.Equal(task.Path)
	if moving && !res.HasHeading(*e.NewPath) {
		return "", &SerializerError{Kind: KindTargetHeadingNotFound, Path: *e.NewPath}
	}
	newTitle := strings.TrimSpace(e.NewTitle)
	if strings.ContainsAny(newTitle, "\r\n") {
		return "", &SerializerError{Kind: KindInvalidRequest, TaskID: e.TaskID}
	}
	if !moving && newTitle == "" && e.NewStatus.IsZero() {
		return text, nil
	}

	titleLines := task.TitleEndLine - task.StartLine + 1
	block := editTask(doc.slice(task.StartLine, task.EndLine), titleLines, newTitle, e.NewStatus, e.DoneStatuses)
	if !moving {
		doc.replace(task.StartLine, task.EndLine, block)
		return doc.String(), nil
	}

	doc.remove(task.StartLine, task.EndLine)
	after, err := parser.Parse(doc.String())
	if err != nil {
		return "", &SerializerError{Kind: KindParseFailed, Err: err}
	}
	insertBlock(doc, insertionIndex(after, *e.NewPath, len(doc.lines)), dedent(block))
	return doc.String(), nil
}

func create(text string, c Create, done []string) (string, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" || strings.ContainsAny(title, "\r\n") {
		return "", &SerializerError{Kind: KindInvalidRequest}
	}
	status := c.Status
	if status.IsZero() {
		status, _ = models.NewStatus(models.DefaultStatus)
	}

	res, err := parser.Parse(text)
	if err != nil {
		return "", &SerializerError{Kind: KindParseFailed, Err: err}
	}
	if !res.HasHeading(c.Path) {
		return "", &SerializerError{Kind: KindTargetHeadingNotFound, Path: c.Path}
	}

	mark := " "
	if status.In(done) {
		mark = "x"
	}
	block := []string{
		"- [" + mark + "] " + title,
		defaultMetaIndent + "- status: " + status.String(),
	}

	doc := splitDocument(text)
	insertBlock(doc, insertionIndex(res, c.Path, len(doc.lines)), block)
	return doc.String(), nil
}

// editTask rewrites the lines of one task. The first line is the checkbox line.
// The first titleLines lines hold the title paragraph, which a new title
// replaces as a whole.
func editTask(lines []string, titleLines int, title string, status models.Status, done []string) []string {
	m := taskLineRe.FindStringSubmatch(lines[0])
	if m == nil {
		return lines
	}
	titleLines = min(max(titleLines, 1), len(lines))
	prefix, mark, closing, rest := m[1], m[2], m[3], m[4]
	if title != "" {
		rest = title
		lines = append(lines[:1:1], lines[titleLines:]...)
		titleLines = 1
	}
	if !status.IsZero() && done != nil {
		if status.In(done) {
			mark = "x"
		} else {
			mark = " "
		}
	}
	lines[0] = prefix + mark + closing + rest
	if status.IsZero() {
		return lines
	}

	indent := metaIndent(lines)
	for i := titleLines; i < len(lines); i++ {
		sm := statusLineRe.FindStringSubmatch(lines[i])
		if sm == nil || leadingSpace(lines[i]) != indent {
			continue
		}
		lines[i] = sm[1] + "status: " + status.String()
		return lines
	}

	statusLine := indent + "- status: " + status.String()
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:titleLines]...)
	out = append(out, statusLine)
	return append(out, lines[titleLines:]...)
}

// metaIndent is the indentation of the task's metadata items: taken from the
// first nested list item if there is one, else aligned with the task text.
func metaIndent(lines []string) string {
	for _, l := range lines[1:] {
		if m := listItemRe.FindStringSubmatch(l); m != nil {
			return m[1]
		}
	}
	m := taskLineRe.FindStringSubmatch(lines[0])
	if m == nil {
		return defaultMetaIndent
	}
	bullet := strings.TrimSuffix(m[1], "[")
	return strings.Repeat(" ", len(bullet))
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// dedent shifts a block left by the indentation of its first line so a task
// nested under a plain bullet lands at the top level of its new section.
func dedent(lines []string) []string {
	cut := leadingSpace(lines[0])
	if cut == "" {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimPrefix(l, cut)
	}
	return out
}

// insertionIndex returns the 0-based line index the new block goes before.
//
// Root tasks go after the last root task, else before the first heading,
// else at the end. Tasks for a heading go after the last task with that
// exact path, else at the end of the heading's own content: before the next
// heading of any level, or at the end of the document.
func insertionIndex(res *parser.Result, dest models.Path, lineCount int) int {
	last := 0
	for _, t := range res.Tasks {
		if t.Path.Equal(dest) && t.EndLine > last {
			last = t.EndLine
		}
	}
	if last > 0 {
		return last
	}

	if dest.IsRoot() {
		for _, h := range res.Headings {
			if h.Line > 0 {
				return h.Line - 1
			}
		}
		return lineCount
	}

	h, ok := res.FindHeading(dest)
	if !ok {
		return lineCount
	}
	for _, next := range res.Headings {
		if next.Line > h.EndLine {
			return next.Line - 1
		}
	}
	return lineCount
}

// insertBlock inserts block at idx. A blank line is added after it when the
// next line is paragraph text that would otherwise continue the new item.
func insertBlock(doc *document, idx int, block []string) {
	if idx < len(doc.lines) {
		next := doc.lines[idx]
		if strings.TrimSpace(next) != "" && !headingRe.MatchString(next) && !listItemRe.MatchString(next) {
			block = append(block, "")
		}
	}
	doc.insert(idx, block)
}
