// Package terminal renders live views as text tables for the watch command.
package terminal

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/okian/liveboard/internal/domain/model"
)

// SinkName identifies the screen in metrics and logs.
const SinkName = "terminal"

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

// Renderer formats views. The zero value is not usable; use NewRenderer.
type Renderer struct {
	up, down, fresh, failed, dim *color.Color
	clear                        bool
	now                          func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor enables or disables ANSI colors and screen clearing.
func WithColor(enabled bool) Option {
	return func(r *Renderer) {
		r.clear = enabled
		for _, c := range []*color.Color{r.up, r.down, r.fresh, r.failed, r.dim} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// WithNow sets the time source for relative update times.
func WithNow(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRenderer creates a Renderer with colors on.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		up:     color.New(color.FgGreen, color.Bold),
		down:   color.New(color.FgRed, color.Bold),
		fresh:  color.New(color.FgCyan, color.Bold),
		failed: color.New(color.FgRed),
		dim:    color.New(color.Faint),
		clear:  true,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Move returns the movement marker of one result: ▲n, ▼n, NEW or empty.
func (r *Renderer) Move(a model.AnnotatedResult) string { //nolint:gocritic // hugeParam: read-only row
	switch {
	case a.IsNew:
		return r.fresh.Sprint("NEW")
	case a.MovingUp:
		return r.up.Sprintf("▲%d", a.Magnitude())
	case a.MovingDown:
		return r.down.Sprintf("▼%d", a.Magnitude())
	}
	return ""
}

// Header returns the title line of a view.
func (r *Renderer) Header(v model.View) string { //nolint:gocritic // hugeParam: read-only view
	var b strings.Builder
	b.WriteString(v.EntityID)
	switch {
	case v.Loading:
		b.WriteString(r.dim.Sprint(" · loading…"))
	case !v.UpdatedAt.IsZero():
		b.WriteString(r.dim.Sprintf(" · updated %s · v%d",
			humanize.RelTime(v.UpdatedAt, r.now(), "ago", "from now"), v.Version))
	}
	return b.String()
}

// Render formats one view as a header, an optional error line and a table.
func (r *Renderer) Render(v model.View) string { //nolint:gocritic // hugeParam: read-only view
	var b strings.Builder
	b.WriteString(r.Header(v))
	b.WriteString("\n")
	if v.Error != "" {
		b.WriteString(r.failed.Sprintf("error: %s", v.Error))
		b.WriteString("\n")
	}

	if len(v.Results) == 0 {
		if !v.Loading {
			b.WriteString(r.dim.Sprint("no results yet"))
			b.WriteString("\n")
		}
		return b.String()
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	tbl.AppendHeader(table.Row{"Pos", "Move", "Participant", "Bib", "Stage"})
	for _, a := range v.Results {
		tbl.AppendRow(table.Row{a.RankPosition, r.Move(a), a.Participant, a.BibNumber, a.StageName})
	}
	b.WriteString(tbl.Render())
	b.WriteString("\n")
	return b.String()
}

// Screen keeps the latest view of each entity and redraws them all on every
// update.
type Screen struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *Renderer
	order    []string
	views    map[string]model.View
}

// NewScreen creates a Screen drawing to out. order fixes the entity order;
// entities not listed are appended as they appear.
func NewScreen(out io.Writer, renderer *Renderer, order []string) *Screen {
	return &Screen{
		out:      out,
		renderer: renderer,
		order:    append([]string(nil), order...),
		views:    make(map[string]model.View, len(order)),
	}
}

// Name implements worker.Sink.
func (s *Screen) Name() string { return SinkName }

// Deliver implements worker.Sink: it records v and redraws. Removed views
// are dropped from the screen.
func (s *Screen) Deliver(_ context.Context, v model.View) error { //nolint:gocritic // hugeParam: matches worker.Sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.Removed {
		delete(s.views, v.EntityID)
	} else {
		if _, ok := s.views[v.EntityID]; !ok && !slices.Contains(s.order, v.EntityID) {
			s.order = append(s.order, v.EntityID)
		}
		s.views[v.EntityID] = v
	}
	return s.drawLocked()
}

func (s *Screen) drawLocked() error {
	var b strings.Builder
	if s.renderer.clear {
		b.WriteString(clearScreen)
	}
	for _, id := range s.order {
		v, ok := s.views[id]
		if !ok {
			continue
		}
		b.WriteString(s.renderer.Render(v))
		b.WriteString("\n")
	}
	if _, err := io.WriteString(s.out, b.String()); err != nil {
		return fmt.Errorf("draw screen: %w", err)
	}
	return nil
}
