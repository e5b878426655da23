package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"memtunnel/hexdump"
	"memtunnel/pointer_chain"
	"memtunnel/process"
	"memtunnel/session"
	"memtunnel/tunnel"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cli struct {
	platform process.Platform
	out      io.Writer

	pid      int
	name     string
	color    string
	debug    bool
	relative bool
}

func newRootCommand(platform process.Platform, out io.Writer) *cobra.Command {
	c := &cli{platform: platform, out: out}

	root := &cobra.Command{
		Use:   "memtunnel",
		Short: "Read and write the memory of a running process.",
		Long: `memtunnel attaches to a running process by PID or name and reads or writes
typed values at hexadecimal addresses, optionally following a pointer chain:

  memtunnel --name game read int32 00B28498
  memtunnel --name game read float 001AAAC4 0x464 0x10
  memtunnel --pid 4242 write int32 00B28498 100

Addresses are hexadecimal without a 0x prefix. Offsets are decimal or 0x-prefixed
hexadecimal and may be negative; put -- before the first negative offset so it is
not taken for a flag. Each offset first dereferences the current address
as a 32-bit pointer and then adds the offset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	c.bindFlags(root.PersistentFlags())

	root.AddCommand(
		c.readCommand(),
		c.writeCommand(),
		c.pointerCommand(),
		c.stringCommand(),
		c.dumpCommand(),
		c.psCommand(),
		c.baseCommand(),
		c.killCommand(),
	)

	return root
}

func (c *cli) bindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.pid, "pid", "p", 0, "Process ID to attach to.")
	fs.StringVarP(&c.name, "name", "n", "", "Process name to attach to (first match by PID).")
	fs.StringVar(&c.color, "color", "auto", "Colorize output: auto, always or never.")
	fs.BoolVar(&c.debug, "debug", false, "Log every pointer-chain hop.")
	fs.BoolVarP(&c.relative, "relative", "r", false, "Treat addresses as offsets from the main module base.")
}

func (c *cli) open() (*tunnel.Tunnel, error) {
	opts := []tunnel.Option{
		tunnel.WithChainOptions(pointer_chain.WithTrace(c.debug)),
	}

	switch {
	case c.pid != 0 && c.name != "":
		return nil, errors.New("--pid and --name are mutually exclusive")
	case c.pid != 0:
		return tunnel.Open(c.platform, process.ProcessID(c.pid), opts...)
	case c.name != "":
		return tunnel.OpenByName(c.platform, c.name, opts...)
	}
	return nil, errors.New("one of --pid or --name is required")
}

// withTunnel attaches, runs fn and always detaches
func (c *cli) withTunnel(fn func(t *tunnel.Tunnel) error) error {
	t, err := c.open()
	if err != nil {
		return err
	}
	defer t.Detach()

	return fn(t)
}

func (c *cli) useColor() bool {
	switch c.color {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := c.out.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// memoryAddress parses ADDR [OFFSET...]
func (c *cli) memoryAddress(t *tunnel.Tunnel, args []string) (process.MemoryAddress, error) {
	start, err := process.ParseAddress(args[0])
	if err != nil {
		return process.MemoryAddress{}, err
	}

	offsets := make([]int32, 0, len(args)-1)
	for _, arg := range args[1:] {
		off, err := process.ParseOffset(arg)
		if err != nil {
			return process.MemoryAddress{}, err
		}
		offsets = append(offsets, off)
	}

	if c.relative {
		return t.Relative(start, offsets...), nil
	}
	return process.NewMemoryAddress(start, offsets...), nil
}

func (c *cli) readCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read KIND ADDR [OFFSET...]",
		Short: "Read a typed value (byte, int16, int32, uint32, float, double).",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := process.ParseKind(args[0])
			if err != nil {
				return err
			}
			return c.withTunnel(func(t *tunnel.Tunnel) error {
				ma, err := c.memoryAddress(t, args[1:])
				if err != nil {
					return err
				}
				v, err := t.Read(kind, ma)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, v.Interface())
				return nil
			})
		},
	}
}

// parseValue parses VALUE for kind: floats for float kinds, integers (any base prefix,
// signed or unsigned) otherwise
func parseValue(kind process.Kind, s string) (any, error) {
	if kind == process.KindFloat32 || kind == process.KindFloat64 {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", kind, s, err)
		}
		return f, nil
	}

	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return i, nil
	}
	u, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", kind, s, err)
	}
	return u, nil
}

func (c *cli) writeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "write KIND ADDR VALUE [OFFSET...]",
		Short: "Write a typed value; integers are truncated to the kind's width.",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := process.ParseKind(args[0])
			if err != nil {
				return err
			}
			value, err := parseValue(kind, args[2])
			if err != nil {
				return err
			}
			return c.withTunnel(func(t *tunnel.Tunnel) error {
				ma, err := c.memoryAddress(t, append([]string{args[1]}, args[3:]...))
				if err != nil {
					return err
				}
				return t.Write(kind, ma, value)
			})
		},
	}
}

func (c *cli) pointerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pointer ADDR [OFFSET...]",
		Short: "Resolve a pointer chain and print every hop.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withTunnel(func(t *tunnel.Tunnel) error {
				ma, err := c.memoryAddress(t, args)
				if err != nil {
					return err
				}
				hops, err := t.Resolver().Trace(ma.Start, ma.Offsets...)
				if err != nil {
					return err
				}
				for i, hop := range hops {
					fmt.Fprintf(c.out, "[%d] %s\n", i, hop)
				}
				final := ma.Start
				if len(hops) > 0 {
					final = hops[len(hops)-1].Result
				}
				fmt.Fprintln(c.out, final.Hex())
				return nil
			})
		},
	}
}

func (c *cli) stringCommand() *cobra.Command {
	var (
		utf16  bool
		maxLen int
	)
	cmd := &cobra.Command{
		Use:   "string ADDR [OFFSET...]",
		Short: "Read a null-terminated ASCII or UTF-16 string.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withTunnel(func(t *tunnel.Tunnel) error {
				ma, err := c.memoryAddress(t, args)
				if err != nil {
					return err
				}
				var s string
				if utf16 {
					s, err = t.ReadUtf16Z(ma, maxLen)
				} else {
					s, err = t.ReadAsciiZ(ma, maxLen)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, s)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&utf16, "utf16", false, "Decode as little-endian UTF-16.")
	cmd.Flags().IntVar(&maxLen, "max", 256, "Maximum length in characters.")
	return cmd
}

func (c *cli) dumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump ADDR SIZE [OFFSET...]",
		Short: "Hex dump SIZE bytes (decimal or 0x-prefixed).",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.ParseUint(args[1], 0, 31)
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[1], err)
			}
			return c.withTunnel(func(t *tunnel.Tunnel) error {
				ma, err := c.memoryAddress(t, append([]string{args[0]}, args[2:]...))
				if err != nil {
					return err
				}
				addr, err := t.Resolver().ResolveAddress(ma)
				if err != nil {
					return err
				}
				data, err := t.Accessor().ReadBytes(addr, int(size))
				if err != nil {
					return err
				}

				opts := hexdump.DefaultOptions()
				opts.StartAddress = uint64(addr)
				opts.Color = c.useColor()
				hexdump.DumpToWriter(c.out, data, opts)
				return nil
			})
		},
	}
}

func (c *cli) psCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ps [NAME]",
		Short: "List processes, optionally only those with the given name.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				list []process.ProcessInfo
				err  error
			)
			if len(args) == 1 {
				list, err = session.ListByName(c.platform, args[0])
			} else {
				list, err = c.platform.FindAllProcesses()
			}
			if err != nil {
				return err
			}
			for _, p := range list {
				fmt.Fprintf(c.out, "%7d %7d  %-16s %s\n", p.PID, p.PPID, p.Name, p.Exe)
			}
			return nil
		},
	}
}

func (c *cli) baseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "base [MODULE]",
		Short: "Print the load address of the main module or of a named module.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withTunnel(func(t *tunnel.Tunnel) error {
				base := t.BaseAddress()
				if len(args) == 1 {
					var err error
					if base, err = t.ModuleBase(args[0]); err != nil {
						return err
					}
				}
				fmt.Fprintln(c.out, base.Hex())
				return nil
			})
		},
	}
}

func (c *cli) killCommand() *cobra.Command {
	var (
		graceful bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "End the attached process.",
		Long: `End the attached process. With --graceful the process is first asked to exit
and only killed if it is still running after --timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.open()
			if err != nil {
				return err
			}
			if graceful {
				err = t.Close(timeout)
			} else {
				err = t.Kill()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, "process", t.PID(), "ended")
			return nil
		},
	}
	cmd.Flags().BoolVar(&graceful, "graceful", false, "Ask the process to exit before killing it.")
	cmd.Flags().DurationVar(&timeout, "timeout", session.DefaultCloseTimeout, "How long to wait for a graceful exit.")
	return cmd
}
