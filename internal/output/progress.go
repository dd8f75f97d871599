package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// PhaseBar draws progress for the phased plan pipeline, one labelled
// phase at a time.
// Example: mining history     [=========>          ]  45% (123/271) jq
type PhaseBar struct {
	mu     sync.Mutex
	writer io.Writer
	width  int
	phase  string
	total  int
	done   int
	item   string
}

// NewPhaseBar creates a phase bar writing to stdout.
func NewPhaseBar() *PhaseBar {
	return &PhaseBar{
		writer: os.Stdout,
		width:  20,
	}
}

// SetWriter sets the output writer (useful for testing).
func (b *PhaseBar) SetWriter(w io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writer = w
}

// StartPhase begins a new labelled phase of total steps.
func (b *PhaseBar) StartPhase(phase string, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = phase
	b.total = total
	b.done = 0
	b.item = ""
	b.render()
}

// Update reports progress within the current phase. The worker pools
// call it from their goroutines; the mutex keeps redraws whole.
func (b *PhaseBar) Update(done int, item string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if done > b.total {
		done = b.total
	}
	b.done = done
	b.item = item
	b.render()
}

// FinishPhase completes the current phase line. On a terminal the bar is
// drawn full and the line ended; plain writers get a single summary line
// per phase instead of the redraws.
func (b *PhaseBar) FinishPhase() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase == "" {
		return
	}
	b.done = b.total
	b.item = ""
	if writerIsTTY(b.writer) {
		b.render()
		fmt.Fprintln(b.writer)
	} else {
		fmt.Fprintf(b.writer, "%s: done (%d)\n", b.phase, b.total)
	}
	b.phase = ""
}

// render draws the bar in place. Caller must hold the mutex. Only
// terminals are redrawn, so redirected output is not flooded with
// \r frames.
func (b *PhaseBar) render() {
	if !writerIsTTY(b.writer) {
		return
	}

	percentage := 100
	filled := b.width
	if b.total > 0 {
		percentage = (b.done * 100) / b.total
		filled = (b.done * b.width) / b.total
	}

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < b.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	item := b.item
	if len(item) > 24 {
		item = item[:24]
	}

	fmt.Fprintf(b.writer, "\r%-18s %s %3d%% (%d/%d) %-24s",
		b.phase, bar.String(), percentage, b.done, b.total, item)
}

// Spinner shows an animated indicator for operations with no usable
// progress measure, such as waiting on git or brew.
type Spinner struct {
	mu      sync.Mutex
	writer  io.Writer
	message string
	chars   []string
	running bool
	ticker  *time.Ticker
	done    chan struct{}
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		writer:  os.Stdout,
		message: message,
		chars:   []string{"|", "/", "-", "\\"},
		done:    make(chan struct{}),
	}
}

// SetWriter sets the output writer (useful for testing).
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the spinner animation. On plain writers the message is
// printed once and no animation runs.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	s.ticker = time.NewTicker(100 * time.Millisecond)
	done := s.done
	tick := s.ticker.C
	go func() {
		i := 0
		for {
			select {
			case <-done:
				return
			case <-tick:
				s.mu.Lock()
				fmt.Fprintf(s.writer, "\r%s %s ", s.chars[i%len(s.chars)], s.message)
				s.mu.Unlock()
				i++
			}
		}
	}()
}

// UpdateMessage changes the message shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.stop("")
}

// StopWithMessage halts the animation and prints a final message.
func (s *Spinner) StopWithMessage(message string) {
	s.stop(message)
}

func (s *Spinner) stop(final string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.done)
		s.ticker = nil
		s.done = make(chan struct{})
	}

	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
	}
	if final != "" {
		fmt.Fprintln(s.writer, final)
	}
}
