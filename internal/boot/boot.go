// Package boot sequences kernel bring-up: the thread subsystem, the
// timer tick source, physical memory, and the initial user process,
// grounded on the teacher's own subprocess bring-up
// (reference/gvisor-teacher/subprocess.go's newSubprocess) generalized
// from "start one traced stub process" to "start the whole simulated
// machine" with golang.org/x/sync/errgroup driving the concurrent
// pieces and surfacing the first fatal error, the idiomatic analogue of
// the source's thread_start/run_actions boot handoff.
package boot

import (
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/NotMo05/PintOS/internal/fsstub"
	"github.com/NotMo05/PintOS/internal/klog"
	"github.com/NotMo05/PintOS/internal/process"
	"github.com/NotMo05/PintOS/internal/syscall"
	"github.com/NotMo05/PintOS/internal/thread"
	"github.com/NotMo05/PintOS/internal/timer"
	"github.com/NotMo05/PintOS/internal/vm/frame"
	"github.com/NotMo05/PintOS/internal/vm/swap"
)

// Config fixes every boot-time parameter the kernel command line (or a
// test) can set.
type Config struct {
	// MLFQS selects the MLFQ scheduler; false selects priority donation.
	MLFQS bool
	// NumFrames sizes the user frame pool (palloc's user page count).
	NumFrames int
	// NumSwapSlots sizes the swap device.
	NumSwapSlots int
	// DiskDir roots the filesystem stub; must already exist.
	DiskDir string
	// InitCmdline, if non-empty, is exec'd as the first user process
	// and booted waits for it to exit before returning.
	InitCmdline string
	// Programs registers Main closures by executable name before the
	// initial process (or any later Exec) can run them.
	Programs map[string]process.Main

	// Source drives the timer tick; nil selects a real HostedSource.
	Source timer.Source
	// Console wires fd 0/1; nil selects os.Stdin/os.Stdout.
	Console *syscall.Console
}

// Kernel bundles every subsystem handle a caller needs after boot:
// further Exec calls, syscall dispatch for a hosted shell, or clean
// shutdown.
type Kernel struct {
	Process *process.Kernel
	Syscall *syscall.Table
	Root    *process.Process
	Source  timer.Source
}

// Shutdown stops the timer source, the Go analogue of the source's
// power_off path reached through the halt syscall or normal return from
// main().
func (k *Kernel) Shutdown() {
	if k.Source != nil {
		k.Source.Stop()
	}
}

// Run boots the kernel per cfg: starts the thread subsystem (which
// itself starts the idle thread), calibrates and starts the timer
// source, wires physical memory and the filesystem stub, and — if
// cfg.InitCmdline is set — execs and waits for the initial process.
// Starting the tick source and running the initial process each go
// through their own errgroup, one after the other, and a fatal error from
// either aborts the boot.
func Run(cfg Config) (*Kernel, error) {
	thread.Init(cfg.MLFQS)
	klog.Infof("boot: thread subsystem up (mlfqs=%v)", cfg.MLFQS)

	src := cfg.Source
	calibrate := src == nil
	if src == nil {
		src = timer.NewHostedSource()
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		if err := src.Start(); err != nil {
			return err
		}
		// Calibration busy-waits against real ticks, so it only makes
		// sense against the source this call created itself; a caller
		// supplying its own Source (e.g. a test's ManualSource) is
		// responsible for driving and/or calibrating it separately.
		if calibrate {
			timer.Calibrate(src)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cfg.DiskDir == "" {
		return nil, os.ErrInvalid
	}
	disk := fsstub.NewDisk(cfg.DiskDir)
	frames := frame.NewTable(frame.NewPool(cfg.NumFrames))
	dev := swap.NewDevice(cfg.NumSwapSlots)
	programs := process.NewRegistry()
	for name, main := range cfg.Programs {
		programs.Register(name, main)
	}

	pk := process.NewKernel(frames, dev, disk, programs)
	root := process.NewInitialProcess(pk, thread.Current())

	console := cfg.Console
	if console == nil {
		console = syscall.NewConsole(os.Stdin, os.Stdout)
	}
	halted := false
	tbl := syscall.New(pk, console, func() {
		halted = true
		src.Stop()
	})

	k := &Kernel{Process: pk, Syscall: tbl, Root: root, Source: src}

	if cfg.InitCmdline != "" {
		init := new(errgroup.Group)
		init.Go(func() error {
			tid, err := pk.Execute(root, cfg.InitCmdline)
			if err != nil {
				return err
			}
			root.Wait(tid)
			return nil
		})
		if err := init.Wait(); err != nil {
			src.Stop()
			return nil, err
		}
	}

	if halted {
		klog.Infof("boot: halted by the initial process")
	}
	return k, nil
}
