package chatcmder

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/papercomputeco/portal/pkg/chat"
)

// textPrinter writes the part of each snapshot's text not yet printed.
type textPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed string
}

func newTextPrinter(w io.Writer) *textPrinter {
	return &textPrinter{w: w}
}

func (p *textPrinter) Observe(s chat.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !strings.HasPrefix(s.Text, p.printed) {
		// A new run reset the text.
		p.printed = ""
	}
	if len(s.Text) > len(p.printed) {
		fmt.Fprint(p.w, s.Text[len(p.printed):])
		p.printed = s.Text
	}
}
