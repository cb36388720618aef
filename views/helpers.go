package views

import (
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

// htmlWriter writes markup and keeps the first error, so templates can be
// written as straight-line code and checked once.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// attr writes ` name="value"` with value escaped.
func (h *htmlWriter) attr(name, value string) {
	h.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (h *htmlWriter) meta(key, name, content string) {
	h.raw("<meta")
	h.attr(key, name)
	h.attr("content", content)
	h.raw(">")
}

// FormatDate renders t the way article bylines show it, e.g. "March 4, 2024".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("January 2, 2006")
}

// ReadingLabel renders a reading time, e.g. "5 min read".
func ReadingLabel(minutes int) string {
	return strconv.Itoa(minutes) + " min read"
}
