// Command pintos boots the kernel (internal/boot) from a host process,
// exposing the kernel command line spec.md §6 describes as a
// subcommands.Command, grounded on gvisor's own runsc entrypoint's use
// of github.com/google/subcommands (present in every gvisor-fork go.mod
// in the pack).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/NotMo05/PintOS/internal/boot"
	"github.com/NotMo05/PintOS/internal/klog"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&bootCommand{numFrames: 256, numSwapSlots: 256}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// bootCommand is the kernel's only real subcommand: run. The remaining
// registered subcommands are subcommands' own help/flags/commands
// introspection.
type bootCommand struct {
	mlfqs        bool
	quiet        bool
	debug        bool
	diskDir      string
	initCmdline  string
	numFrames    int
	numSwapSlots int
}

func (*bootCommand) Name() string     { return "run" }
func (*bootCommand) Synopsis() string { return "boot the kernel and run the named initial process" }
func (*bootCommand) Usage() string {
	return "run -disk <dir> -init <cmdline> [-mlfqs] [-q] [-debug]:\n" +
		"  boot the thread/VM subsystems and exec the initial process.\n"
}

func (c *bootCommand) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.mlfqs, "mlfqs", false, "use the MLFQ scheduler instead of priority donation")
	f.BoolVar(&c.quiet, "q", false, "suppress boot milestone logging")
	f.BoolVar(&c.debug, "debug", false, "enable scheduler/VM trace logging")
	f.StringVar(&c.diskDir, "disk", "", "directory backing the filesystem stub (required)")
	f.StringVar(&c.initCmdline, "init", "", "initial process command line, e.g. \"prog arg1 arg2\" (required)")
	f.IntVar(&c.numFrames, "frames", 256, "number of simulated physical page frames")
	f.IntVar(&c.numSwapSlots, "swap-slots", 256, "number of simulated swap slots")
}

func (c *bootCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.diskDir == "" || c.initCmdline == "" {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	klog.SetDebug(c.debug)
	if !c.quiet {
		klog.Infof("boot: starting pintos (mlfqs=%v, frames=%d, swap-slots=%d)", c.mlfqs, c.numFrames, c.numSwapSlots)
	}

	k, err := boot.Run(boot.Config{
		MLFQS:        c.mlfqs,
		NumFrames:    c.numFrames,
		NumSwapSlots: c.numSwapSlots,
		DiskDir:      c.diskDir,
		InitCmdline:  c.initCmdline,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pintos: boot failed: %v\n", err)
		return subcommands.ExitFailure
	}
	defer k.Shutdown()

	return subcommands.ExitSuccess
}
