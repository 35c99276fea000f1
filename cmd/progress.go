package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

// progressPrinter redraws a one-line status counter on w while a plan runs.
type progressPrinter struct {
	w        io.Writer
	total    int
	mu       sync.Mutex
	counts   map[check.Status]int
	duration float64
	stopped  bool
	updates  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(w io.Writer, total int) *progressPrinter {
	if total <= 0 {
		total = 1
	}
	return &progressPrinter{
		w:       w,
		total:   total,
		counts:  map[check.Status]int{},
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go p.loop()
}

func (p *progressPrinter) Increment(status check.Status, duration float64) {
	p.mu.Lock()
	p.counts[status]++
	p.duration += duration
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	fmt.Fprintf(p.w, "\r%s\r%s\n", strings.Repeat(" ", 80), p.line())
}

func (p *progressPrinter) loop() {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	fmt.Fprint(p.w, "\r"+p.line())
}

// line renders the counters. Callers hold p.mu.
func (p *progressPrinter) line() string {
	completed := 0
	for _, n := range p.counts {
		completed += n
	}
	total := p.total
	if completed > total {
		total = completed
	}

	avg := 0.0
	if completed > 0 {
		avg = p.duration / float64(completed)
	}
	percent := float64(completed) / float64(total) * 100
	return fmt.Sprintf("%d/%d (%.0f%%) open=%d closed=%d unknown=%d error=%d avg=%.2fs",
		completed, total, percent,
		p.counts[check.StatusOpen], p.counts[check.StatusClosed],
		p.counts[check.StatusUnknown], p.counts[check.StatusError], avg)
}
