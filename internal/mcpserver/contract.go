package mcpserver

// TaskFormat describes how board documents store tasks, for LLM clients
// that read or write the Markdown directly.
const TaskFormat = `# mdboard Task Format

A board document is a Markdown file (` + "`.md`" + `, UTF-8, forward-slash paths)
whose GitHub-style checklist items are tasks.

## Structure

` + "```" + `markdown
---
kanban:
  statuses: [todo, in-progress, done]
  doneStatuses: [done]
  defaultStatus: todo
  defaultDoneStatus: done
  sortBy: priority
  syncCheckboxWithDone: true
---

# Work

## Reports

- [ ] Write report
  - status: in-progress
  - priority: high
  - due: 2025-02-01

# Done

- [x] Ship release
  - status: done
` + "```" + `

## Rules

1. **Tasks** are list items starting with ` + "`[ ]`" + ` or ` + "`[x]`" + `. Plain bullets are not tasks.
2. **Path.** A task belongs to the chain of headings above it, e.g. ` + "`Work / Reports`" + `.
   Tasks before the first heading live at the root.
3. **Metadata** is the nested bullet list directly under the task, one ` + "`key: value`" + ` per
   line. ` + "`status`" + ` is the column; ` + "`priority`" + ` (high, medium, low) and ` + "`due`" + `
   (ISO date) drive sorting.
4. **Status** is lowercase with spaces replaced by ` + "`-`" + `. Missing status means the
   default status, or the default done status when the box is checked.
5. **Checkbox.** When ` + "`syncCheckboxWithDone`" + ` is on, the box is checked exactly when
   the status is one of the done statuses.
6. **Identity.** A task id is derived from its path and title, so renaming or moving a
   task changes its id. Titles should be unique within a heading.
7. **Front-matter** is optional. Only the ` + "`kanban`" + ` block is read; other keys are kept.

## Tools

- Prefer ` + "`create_task`" + `, ` + "`update_task`" + ` and ` + "`delete_task`" + ` over rewriting
  files: they keep indentation, surrounding text and metadata intact.
- Pass the ` + "`checksum`" + ` from ` + "`get_board`" + ` as ` + "`if_match`" + ` to avoid
  overwriting concurrent edits.
`
