// Package notify turns hazard notices into messages for the people at the
// table: localized console lines and journal events.
package notify

import (
	"embed"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/leonelquinteros/gotext"
	"golang.org/x/term"

	"github.com/talgya/wildfire/internal/hazard"
	"github.com/talgya/wildfire/internal/scene"
)

//go:embed locales/*.po
var locales embed.FS

// Languages lists the bundled message catalogues.
var Languages = []string{"en", "de"}

// Translator renders notices in one language.
type Translator struct {
	lang string
	po   *gotext.Po
}

// NewTranslator loads the catalogue for lang.
func NewTranslator(lang string) (*Translator, error) {
	b, err := locales.ReadFile("locales/" + lang + ".po")
	if err != nil {
		return nil, fmt.Errorf("unsupported language %q", lang)
	}
	po := gotext.NewPo()
	po.Parse(b)
	return &Translator{lang: lang, po: po}, nil
}

// Lang returns the catalogue language.
func (t *Translator) Lang() string { return t.lang }

// Message returns the user-facing text of a notice.
func (t *Translator) Message(n hazard.Notice) string {
	switch n.Kind {
	case hazard.NoticeCreated:
		return t.po.Get("%s is now a hazard.", n.HazardName)
	case hazard.NoticeRemoved:
		return t.po.Get("%s is no longer a hazard.", n.HazardName)
	case hazard.NoticeRegionsMarked:
		return t.po.GetN("%s region marked flammable.", "%s regions marked flammable.",
			n.Count, humanize.Comma(int64(n.Count)))
	case hazard.NoticeRegionsCleared:
		return t.po.GetN("%s region no longer flammable.", "%s regions no longer flammable.",
			n.Count, humanize.Comma(int64(n.Count)))
	case hazard.NoticeSpread:
		if n.Count == 0 {
			return t.po.Get("%s did not spread.", n.HazardName)
		}
		return t.po.GetN("%s spread to %s new cell.", "%s spread to %s new cells.",
			n.Count, n.HazardName, humanize.Comma(int64(n.Count)))
	case hazard.NoticeSpreadFailed:
		return t.po.Get("%s failed to spread: %v", n.HazardName, n.Err)
	case hazard.NoticeRejected:
		return t.po.Get("Request rejected: %v", n.Err)
	}
	return n.Kind.String()
}

var (
	styleCreated = color.Style{color.FgYellow, color.OpBold}
	styleSpread  = color.Style{color.FgRed}
	styleQuiet   = color.Style{color.FgGray}
	styleError   = color.Style{color.FgRed, color.OpBold}
	styleInfo    = color.Style{color.FgCyan}
)

func styleFor(n hazard.Notice) color.Style {
	switch n.Kind {
	case hazard.NoticeCreated:
		return styleCreated
	case hazard.NoticeSpread:
		if n.Count == 0 {
			return styleQuiet
		}
		return styleSpread
	case hazard.NoticeSpreadFailed, hazard.NoticeRejected:
		return styleError
	}
	return styleInfo
}

// Console writes one line per notice, coloured when the writer is a terminal.
type Console struct {
	tr *Translator

	mu     sync.Mutex
	w      io.Writer
	colour bool
}

// NewConsole creates a console notifier writing to w.
func NewConsole(w io.Writer, tr *Translator) *Console {
	colour := false
	if f, ok := w.(*os.File); ok {
		colour = term.IsTerminal(int(f.Fd()))
	}
	return &Console{tr: tr, w: w, colour: colour}
}

// SetColour forces colour output on or off.
func (c *Console) SetColour(on bool) {
	c.mu.Lock()
	c.colour = on
	c.mu.Unlock()
}

// Notify implements hazard.Notifier.
func (c *Console) Notify(n hazard.Notice) {
	msg := c.tr.Message(n)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.colour {
		msg = styleFor(n).Sprint(msg)
	}
	fmt.Fprintln(c.w, msg)
}

// Journal records notices as scene events until they are drained.
type Journal struct {
	tr  *Translator
	now func() time.Time

	mu     sync.Mutex
	turn   uint64
	events []scene.Event
}

// NewJournal creates an empty journal.
func NewJournal(tr *Translator) *Journal {
	return &Journal{tr: tr, now: time.Now}
}

// SetTurn records the current turn, stamped on events whose notice does
// not carry one. It never moves backwards.
func (j *Journal) SetTurn(turn uint64) {
	j.mu.Lock()
	j.turn = max(j.turn, turn)
	j.mu.Unlock()
}

// Notify implements hazard.Notifier.
func (j *Journal) Notify(n hazard.Notice) {
	ev := scene.Event{
		Description: j.tr.Message(n),
		Category:    n.Kind.String(),
		At:          j.now().UTC(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	ev.Turn = n.Turn
	if ev.Turn == 0 {
		ev.Turn = j.turn
	}
	j.events = append(j.events, ev)
}

// Len returns the number of undrained events.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}

// Drain returns the recorded events in order and empties the journal.
func (j *Journal) Drain() []scene.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.events
	j.events = nil
	return out
}

// Multi fans a notice out to several notifiers in order.
type Multi []hazard.Notifier

// Notify implements hazard.Notifier.
func (m Multi) Notify(n hazard.Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}
