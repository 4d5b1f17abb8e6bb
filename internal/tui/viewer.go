// Package tui shows live button state in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/sweeney/buttond/internal/button"
)

const viewerTitle = " buttond "

// Source is the part of button.Engine the viewer displays.
type Source interface {
	Snapshot() []button.ChannelState
	Bitmask() uint32
	PressedCount() int
	Enabled() bool
}

// Viewer is a full-screen view of every channel, redrawn every interval.
type Viewer struct {
	app      *tview.Application
	view     *tview.TextView
	src      Source
	interval time.Duration
	logger   *zap.SugaredLogger
}

// New creates a viewer over src.
func New(src Source, interval time.Duration, logger *zap.SugaredLogger) *Viewer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Viewer{
		app:      tview.NewApplication(),
		src:      src,
		interval: interval,
		logger:   logger,
	}
}

func (v *Viewer) setupUI() {
	v.view = tview.NewTextView()
	v.view.SetDynamicColors(true)
	v.view.SetTextAlign(tview.AlignLeft)
	v.view.SetBackgroundColor(tcell.ColorBlack)
	v.view.SetBorder(true).SetTitle(viewerTitle).SetTitleColor(tcell.ColorLightBlue)

	help := tview.NewTextView()
	help.SetDynamicColors(true)
	help.SetTextAlign(tview.AlignCenter)
	help.SetText("Hit [#ff0000]q[-] to exit")

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	layout.AddItem(v.view, 0, 1, true)
	layout.AddItem(help, 1, 0, false)

	v.app.SetRoot(layout, true).SetFocus(v.view)
	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			v.app.Stop()
			return nil
		}
		if event.Key() == tcell.KeyEscape {
			v.app.Stop()
			return nil
		}
		return event
	})
}

// Run draws until ctx is cancelled or the user quits.
func (v *Viewer) Run(ctx context.Context) error {
	v.setupUI()
	v.view.SetText(Render(v.src))

	stopped := make(chan struct{})
	go func() {
		ticker := time.NewTicker(v.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				v.app.Stop()
				return
			case <-stopped:
				return
			case <-ticker.C:
				text := Render(v.src)
				v.app.QueueUpdateDraw(func() {
					v.view.SetText(text)
				})
			}
		}
	}()

	v.logger.Debug("starting terminal viewer")
	err := v.app.Run()
	close(stopped)
	if err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}

// Render formats the current state of src as tview color-tagged text.
func Render(src Source) string {
	states := src.Snapshot()
	var b strings.Builder
	if !src.Enabled() {
		b.WriteString("[orange]engine disabled[-]\n\n")
	}
	fmt.Fprintf(&b, "[yellow]%-3s %-12s %-8s %10s %10s %6s[-]\n", "#", "NAME", "STATE", "HELD", "RELEASED", "REPEAT")
	for i, s := range states {
		b.WriteString(formatRow(i, s))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\npressed %d of %d, bitmask %s\n", src.PressedCount(), len(states), formatBits(src.Bitmask(), len(states)))
	return b.String()
}

func formatRow(i int, s button.ChannelState) string {
	state := "[gray]released[-]"
	if s.Pressed {
		state = "[green]PRESSED[-] "
	}
	return fmt.Sprintf("%-3d %-12s %s %10s %10s %6d",
		i, s.Name, state,
		s.PressedTime.Truncate(time.Millisecond), s.ReleasedTime.Truncate(time.Millisecond),
		s.RepeatCount)
}

// formatBits renders mask most significant channel first, one digit per channel.
func formatBits(mask uint32, n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%0*b", n, mask)
}
