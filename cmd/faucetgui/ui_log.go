package main

import (
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// maxLogChars keeps the entry responsive during long dispatch runs.
const maxLogChars = 200_000

// logPane is an io.Writer backed by a read-only multi-line entry.
type logPane struct {
	mu     sync.Mutex
	box    *widget.Entry
	scroll *container.Scroll
	buf    strings.Builder
}

func newLogPane() *logPane {
	p := &logPane{box: widget.NewMultiLineEntry()}
	p.box.Disable()
	p.box.Wrapping = fyne.TextWrapWord
	p.box.TextStyle = fyne.TextStyle{Monospace: true}
	p.scroll = container.NewVScroll(p.box)
	p.scroll.SetMinSize(fyne.NewSize(900, 380))
	return p
}

func (p *logPane) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.buf.Write(b)
	text := p.buf.String()
	if len(text) > maxLogChars {
		text = text[len(text)-maxLogChars:]
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
		p.buf.Reset()
		p.buf.WriteString(text)
	}
	p.mu.Unlock()

	p.box.SetText(text)
	p.scroll.ScrollToBottom()
	return len(b), nil
}

func (p *logPane) Clear() {
	p.mu.Lock()
	p.buf.Reset()
	p.mu.Unlock()
	p.box.SetText("")
}
