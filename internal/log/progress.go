package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ProgressSpinner shows a spinner on a terminal while a long step runs.
// On anything that is not a terminal it stays silent.
type ProgressSpinner struct {
	mu      sync.Mutex
	message string
	frames  []string
	current int
	writer  io.Writer
	enabled bool
	stop    chan struct{}
	done    chan struct{}
}

// NewProgressSpinner creates a spinner writing to stderr.
func NewProgressSpinner(message string) *ProgressSpinner {
	return newProgressSpinner(os.Stderr, message)
}

func newProgressSpinner(w io.Writer, message string) *ProgressSpinner {
	return &ProgressSpinner{
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		writer:  w,
		enabled: isTerminal(w),
	}
}

// Start begins the spinner animation
func (p *ProgressSpinner) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.animate(p.stop, p.done)
}

// Stop stops the spinner and clears its line.
func (p *ProgressSpinner) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	fmt.Fprint(p.writer, "\r\033[K")
}

// Message updates the spinner message
func (p *ProgressSpinner) Message(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *ProgressSpinner) animate(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			frame := p.frames[p.current%len(p.frames)]
			p.current++
			fmt.Fprintf(p.writer, "\r\033[36m%s\033[0m %s", frame, p.message)
			p.mu.Unlock()
		case <-stop:
			return
		}
	}
}
