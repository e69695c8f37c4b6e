package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"henkan/internal/conversion"
	"henkan/internal/ime"
)

// view prints session output for a terminal.
type view struct {
	w io.Writer

	prompt    *color.Color
	status    *color.Color
	underline *color.Color
	highlight *color.Color
	focused   *color.Color
	faint     *color.Color
	commit    *color.Color
	warn      *color.Color
}

func newView(w io.Writer) *view {
	return &view{
		w:         w,
		prompt:    color.New(color.FgCyan),
		status:    color.New(color.Faint, color.Italic),
		underline: color.New(color.Underline),
		highlight: color.New(color.ReverseVideo),
		focused:   color.New(color.Bold, color.FgHiYellow),
		faint:     color.New(color.Faint),
		commit:    color.New(color.FgGreen, color.Bold),
		warn:      color.New(color.FgRed),
	}
}

func (v *view) showPrompt() {
	_, _ = v.prompt.Fprint(v.w, "> ")
}

func (v *view) showCommit(r *conversion.OutputResult) {
	_, _ = fmt.Fprint(v.w, "commit: ")
	_, _ = v.commit.Fprintln(v.w, r.Value)
}

func (v *view) showDeletion(d *conversion.Deletion) {
	_, _ = v.faint.Fprintf(v.w, "delete: %d chars before caret\n", d.Length)
}

func (v *view) showEcho(key string) {
	_, _ = v.faint.Fprintf(v.w, "echo: %s\n", key)
}

func (v *view) showError(err error) {
	_, _ = v.warn.Fprintf(v.w, "error: %v\n", err)
}

func (v *view) showWarning(format string, args ...any) {
	_, _ = v.warn.Fprintf(v.w, "warning: "+format+"\n", args...)
}

// show prints the status line, the preedit and the candidate window.
func (v *view) show(out *ime.Output) {
	_, _ = v.status.Fprintf(v.w, "[%s/%s]", out.Status, out.Mode)
	if out.Output != nil && out.Preedit != nil {
		_, _ = fmt.Fprint(v.w, " ")
		v.showPreedit(out.Preedit)
	}
	_, _ = fmt.Fprintln(v.w)

	if out.Output != nil && out.Candidates != nil {
		v.showCandidates(out.Candidates)
	}
}

func (v *view) showPreedit(p *conversion.Preedit) {
	for _, seg := range p.Segments {
		switch seg.Annotation {
		case conversion.AnnotationHighlight:
			_, _ = v.highlight.Fprint(v.w, seg.Value)
		case conversion.AnnotationUnderline:
			_, _ = v.underline.Fprint(v.w, seg.Value)
		default:
			_, _ = fmt.Fprint(v.w, seg.Value)
		}
	}
}

func (v *view) showCandidates(w *conversion.CandidateWindow) {
	focused := -1
	if w.FocusedIndex != nil {
		focused = *w.FocusedIndex
	}
	for _, c := range w.Candidates {
		label := c.Shortcut
		if label == "" {
			label = " "
		}
		line := fmt.Sprintf("  %s %s", label, c.Value)
		if c.Description != "" {
			line += "  " + v.faint.Sprint(c.Description)
		}
		if c.Index == focused {
			_, _ = v.focused.Fprintln(v.w, strings.Replace(line, "  ", "> ", 1))
			continue
		}
		_, _ = fmt.Fprintln(v.w, line)
	}
	_, _ = v.faint.Fprintf(v.w, "  (%s %d/%d)\n", w.Category, focused+1, w.Size)
}
