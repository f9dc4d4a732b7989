package timer

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/NotMo05/PintOS/internal/klog"
)

// Source drives onTick at a fixed cadence. HostedSource backs production
// boot; ManualSource lets tests advance the clock deterministically.
type Source interface {
	// Start begins delivering ticks until Stop is called. Start must not
	// block; ticking happens on a background goroutine.
	Start() error
	Stop()
}

// HostedSource arms an interval timer via unix.Setitimer and delivers
// ticks from the process's SIGALRM stream, the Go analogue of the
// source's pit_configure_channel/intr_register_ext(0x20, ...) pairing a
// hardware channel with an interrupt vector.
type HostedSource struct {
	mu      sync.Mutex
	sigCh   chan os.Signal
	stopCh  chan struct{}
	running bool
}

// NewHostedSource returns a Source that ticks Frequency times per second
// off the host's real-time interval timer.
func NewHostedSource() *HostedSource {
	return &HostedSource{}
}

func (h *HostedSource) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}

	interval := time.Second / time.Duration(Frequency)
	it := unix.Itimerval{
		Interval: unix.NsecToTimeval(interval.Nanoseconds()),
		Value:    unix.NsecToTimeval(interval.Nanoseconds()),
	}
	if err := unix.Setitimer(unix.ITIMER_REAL, &it, nil); err != nil {
		return err
	}

	h.sigCh = make(chan os.Signal, 4)
	h.stopCh = make(chan struct{})
	signal.Notify(h.sigCh, syscall.SIGALRM)
	h.running = true

	go func() {
		for {
			select {
			case <-h.sigCh:
				onTick()
			case <-h.stopCh:
				return
			}
		}
	}()

	klog.Infof("timer: hosted source armed at %d Hz", Frequency)
	return nil
}

func (h *HostedSource) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	signal.Stop(h.sigCh)
	var disarm unix.Itimerval
	_ = unix.Setitimer(unix.ITIMER_REAL, &disarm, nil)
	close(h.stopCh)
	h.running = false
}

// ManualSource never ticks on its own; tests call Tick to advance the
// clock one interrupt at a time, keeping scheduler tests deterministic.
type ManualSource struct{}

// NewManualSource returns a Source with no background goroutine.
func NewManualSource() *ManualSource { return &ManualSource{} }

func (*ManualSource) Start() error { return nil }
func (*ManualSource) Stop()        {}

// Tick delivers exactly one timer interrupt synchronously.
func (*ManualSource) Tick() { onTick() }
