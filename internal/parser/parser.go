// Package parser recovers tasks, headings and board configuration from a
// Markdown document. Every call works from the raw text; nothing is cached.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/mdboard/internal/models"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	checkboxPrefixRe = regexp.MustCompile(`^\[[\sxX]\]\s*`)
)

// ParseError reports a document that cannot be parsed at all.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parser: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Task is a parsed task plus the inclusive 1-based line range it occupies in
// the original text, metadata sub-list included.
type Task struct {
	models.Task
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	// TitleEndLine is the last line of the title paragraph, which wraps
	// over several lines when the title has continuation text.
	TitleEndLine int `json:"-"`
}

// Heading is a heading path and its position in the original text.
// Line is 0 when the heading carries no text to locate it by.
type Heading struct {
	Path  models.Path `json:"path"`
	Level int         `json:"level"`
	Line  int         `json:"line"`
	// EndLine is the last line of the heading; it differs from Line for
	// setext headings.
	EndLine int `json:"end_line"`
}

// Result holds the output of parsing a board document.
type Result struct {
	Tasks    []Task
	Headings []Heading
	Warnings []string
	Config   *models.FrontmatterConfig
}

// HeadingPaths returns the path of every heading in document order.
func (r *Result) HeadingPaths() []models.Path {
	out := make([]models.Path, len(r.Headings))
	for i, h := range r.Headings {
		out[i] = h.Path
	}
	return out
}

// FindTask returns the first task with the given id.
func (r *Result) FindTask(id models.TaskID) (Task, bool) {
	for _, t := range r.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// FindHeading returns the first heading whose path equals p.
func (r *Result) FindHeading(p models.Path) (Heading, bool) {
	for _, h := range r.Headings {
		if h.Path.Equal(p) {
			return h, true
		}
	}
	return Heading{}, false
}

// HasHeading reports whether p is root or the path of some heading.
func (r *Result) HasHeading(p models.Path) bool {
	if p.IsRoot() {
		return true
	}
	_, ok := r.FindHeading(p)
	return ok
}

type options struct {
	defaultStatus     string
	defaultDoneStatus string
}

// Option adjusts parsing.
type Option func(*options)

// WithDefaults sets the statuses used for tasks without explicit status
// metadata when the document's front-matter does not set them.
func WithDefaults(status, doneStatus string) Option {
	return func(o *options) {
		if strings.TrimSpace(status) != "" {
			o.defaultStatus = status
		}
		if strings.TrimSpace(doneStatus) != "" {
			o.defaultDoneStatus = doneStatus
		}
	}
}

// Parse extracts front-matter configuration, headings and tasks from src.
// Only malformed front-matter is an error; anything else that does not look
// like a task is skipped.
func Parse(src string, opts ...Option) (*Result, error) {
	o := options{
		defaultStatus:     models.DefaultStatus,
		defaultDoneStatus: models.DefaultDoneStatus,
	}
	for _, opt := range opts {
		opt(&o)
	}

	fm, err := splitFrontmatter(src)
	if err != nil {
		return nil, err
	}
	if fm.Config != nil {
		if fm.Config.DefaultStatus != "" {
			o.defaultStatus = fm.Config.DefaultStatus
		}
		if fm.Config.DefaultDoneStatus != "" {
			o.defaultDoneStatus = fm.Config.DefaultDoneStatus
		}
	}

	body := []byte(fm.Body)
	doc := markdown.Parser().Parse(text.NewReader(body))

	w := &walker{
		src:       body,
		lineStart: lineStarts(body),
		offset:    fm.LineOffset,
		opts:      o,
	}
	w.walk(doc)

	return &Result{
		Tasks:    w.tasks,
		Headings: w.headings,
		Warnings: duplicateWarnings(w.tasks),
		Config:   fm.Config,
	}, nil
}

type stackEntry struct {
	level int
	text  string
}

type walker struct {
	src       []byte
	lineStart []int
	offset    int
	opts      options

	stack    []stackEntry
	headings []Heading
	tasks    []Task
}

// walk visits the top-level blocks only. Block quotes, code blocks and other
// containers are never inspected.
func (w *walker) walk(doc ast.Node) {
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Heading:
			w.heading(n)
		case *ast.List:
			w.list(n)
		}
	}
}

func (w *walker) heading(h *ast.Heading) {
	for len(w.stack) > 0 && w.stack[len(w.stack)-1].level >= h.Level {
		w.stack = w.stack[:len(w.stack)-1]
	}
	w.stack = append(w.stack, stackEntry{level: h.Level, text: strings.TrimSpace(inlineText(h, w.src))})

	hd := Heading{Path: w.currentPath(), Level: h.Level}
	if lines := h.Lines(); lines.Len() > 0 {
		first := lines.At(0)
		last := lines.At(lines.Len() - 1)
		hd.Line = w.lineOf(first.Start)
		hd.EndLine = w.lineOf(segmentLast(last))
		if !w.isATX(first.Start) {
			hd.EndLine++ // setext underline
		}
		hd.Line += w.offset
		hd.EndLine += w.offset
	}
	w.headings = append(w.headings, hd)
}

func (w *walker) currentPath() models.Path {
	segs := make([]string, len(w.stack))
	for i, e := range w.stack {
		segs[i] = e.text
	}
	return models.NewPath(segs...)
}

// list walks list items. Items without a checkbox are not tasks, but their
// nested lists may still hold tasks.
func (w *walker) list(l *ast.List) {
	for c := l.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		checked, isTask := checkboxState(item)
		if !isTask {
			for gc := item.FirstChild(); gc != nil; gc = gc.NextSibling() {
				if sub, ok := gc.(*ast.List); ok {
					w.list(sub)
				}
			}
			continue
		}
		if t, ok := w.task(item, checked); ok {
			w.tasks = append(w.tasks, t)
		}
	}
}

func (w *walker) task(item *ast.ListItem, checked bool) (Task, bool) {
	first := item.FirstChild()
	lines := first.Lines()
	if lines.Len() == 0 {
		return Task{}, false
	}
	start := lines.At(0).Start
	stop := lines.At(lines.Len() - 1).Stop
	title := strings.TrimSpace(string(w.src[start:stop]))
	title = strings.TrimSpace(checkboxPrefixRe.ReplaceAllString(title, ""))
	if title == "" {
		return Task{}, false
	}

	metadata := map[string]string{}
	if sub, ok := first.NextSibling().(*ast.List); ok {
		metadata = w.metadata(sub)
	}

	statusValue, explicit := metadata["status"]
	delete(metadata, "status")
	if !explicit {
		statusValue = w.opts.defaultStatus
		if checked {
			statusValue = w.opts.defaultDoneStatus
		}
	}
	status, err := models.NewStatus(statusValue)
	if err != nil {
		return Task{}, false
	}

	path := w.currentPath()
	return Task{
		Task: models.Task{
			ID:       models.NewTaskID(path, title),
			Title:    title,
			Status:   status,
			Path:     path,
			Checked:  checked,
			Metadata: metadata,
		},
		StartLine:    w.lineOf(start) + w.offset,
		EndLine:      w.lastLine(item) + w.offset,
		TitleEndLine: w.lineOf(segmentLast(lines.At(lines.Len()-1))) + w.offset,
	}, true
}

// metadata reads `key: value` items. The key is everything before the first
// colon; blank keys and blank values are ignored.
func (w *walker) metadata(l *ast.List) map[string]string {
	out := map[string]string{}
	for c := l.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok || item.FirstChild() == nil {
			continue
		}
		if _, isTask := checkboxState(item); isTask {
			continue
		}
		line := strings.TrimSpace(inlineText(item.FirstChild(), w.src))
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// lastLine returns the body line of the last byte held by any block under n.
// Fenced code blocks also own their fence lines, which carry no content.
func (w *walker) lastLine(n ast.Node) int {
	last := 0
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if fc, ok := c.(*ast.FencedCodeBlock); ok {
			if l := w.fenceEnd(fc, last); l > last {
				last = l
			}
			return ast.WalkSkipChildren, nil
		}
		if lines := c.Lines(); lines.Len() > 0 {
			if l := w.lineOf(segmentLast(lines.At(lines.Len() - 1))); l > last {
				last = l
			}
		}
		return ast.WalkContinue, nil
	})
	return last
}

// fenceEnd returns the line of a fenced block's closing fence, or of its last
// content line when the block runs unclosed to the end of its container.
// prev is the last line of the blocks before it.
func (w *walker) fenceEnd(fc *ast.FencedCodeBlock, prev int) int {
	var open, end int
	switch lines := fc.Lines(); {
	case lines.Len() > 0:
		open = w.lineOf(lines.At(0).Start) - 1
		end = w.lineOf(segmentLast(lines.At(lines.Len() - 1)))
	case fc.Info != nil:
		open = w.lineOf(fc.Info.Segment.Start)
		end = open
	default:
		open = prev + 1
		for open < w.lineCount() && strings.TrimSpace(w.line(open)) == "" {
			open++
		}
		end = open
	}

	fence := fenceMarker(w.line(open))
	if fence == "" || end >= w.lineCount() {
		return end
	}
	closing := strings.TrimSpace(w.line(end + 1))
	if strings.HasPrefix(closing, fence) && strings.Trim(closing, fence[:1]) == "" {
		return end + 1
	}
	return end
}

// fenceMarker returns the run of backticks or tildes opening a fence line.
func fenceMarker(line string) string {
	line = strings.TrimLeft(line, " \t")
	if line == "" || (line[0] != '`' && line[0] != '~') {
		return ""
	}
	n := len(line) - len(strings.TrimLeft(line, line[:1]))
	if n < 3 {
		return ""
	}
	return line[:n]
}

// line returns the text of 1-based body line i without its newline.
func (w *walker) line(i int) string {
	if i < 1 || i > len(w.lineStart) {
		return ""
	}
	begin := w.lineStart[i-1]
	stop := len(w.src)
	if i < len(w.lineStart) {
		stop = w.lineStart[i] - 1
	}
	return strings.TrimSuffix(string(w.src[begin:stop]), "\r")
}

// lineCount is the number of body lines, ignoring the empty line after a
// trailing newline.
func (w *walker) lineCount() int {
	n := len(w.lineStart)
	if n > 1 && w.lineStart[n-1] == len(w.src) {
		n--
	}
	return n
}

// lineOf maps a byte offset in the body to a 1-based body line.
func (w *walker) lineOf(offset int) int {
	return sort.Search(len(w.lineStart), func(i int) bool {
		return w.lineStart[i] > offset
	})
}

// isATX reports whether the heading text at offset sits on a line starting with '#'.
func (w *walker) isATX(offset int) bool {
	begin := w.lineStart[w.lineOf(offset)-1]
	line := strings.TrimLeft(string(w.src[begin:offset]), " ")
	return strings.HasPrefix(line, "#")
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// segmentLast returns the offset of the last byte of seg.
func segmentLast(seg text.Segment) int {
	if seg.Stop > seg.Start {
		return seg.Stop - 1
	}
	return seg.Start
}

// checkboxState reports the checkbox of a list item, if it has one.
func checkboxState(item *ast.ListItem) (checked bool, ok bool) {
	first := item.FirstChild()
	if first == nil {
		return false, false
	}
	switch first.(type) {
	case *ast.Paragraph, *ast.TextBlock:
	default:
		return false, false
	}
	cb, ok := first.FirstChild().(*east.TaskCheckBox)
	if !ok {
		return false, false
	}
	return cb.IsChecked, true
}

// inlineText flattens the inline children of n to plain text. Code spans keep
// their backticks.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.Label(src))
		case *ast.CodeSpan:
			b.WriteByte('`')
			b.WriteString(inlineText(c, src))
			b.WriteByte('`')
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

// duplicateWarnings reports every id shared by more than one task, in the
// order the ids were first seen.
func duplicateWarnings(tasks []Task) []string {
	lines := make(map[models.TaskID][]int)
	var order []models.TaskID
	byID := make(map[models.TaskID]Task)
	for _, t := range tasks {
		if _, seen := lines[t.ID]; !seen {
			order = append(order, t.ID)
			byID[t.ID] = t
		}
		lines[t.ID] = append(lines[t.ID], t.StartLine)
	}

	var warnings []string
	for _, id := range order {
		if len(lines[id]) < 2 {
			continue
		}
		nums := make([]string, len(lines[id]))
		for i, l := range lines[id] {
			nums[i] = fmt.Sprint(l)
		}
		t := byID[id]
		warnings = append(warnings, fmt.Sprintf("duplicate task %q under %s at lines %s",
			t.Title, t.Path, strings.Join(nums, ", ")))
	}
	return warnings
}
