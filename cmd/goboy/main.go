// Command goboy runs the emulator core against a cartridge ROM file.
package main

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/urfave/cli.v2"

	"goboy/bus"
	"goboy/cartridge"
	"goboy/debugger"
	"goboy/driver"
)

func main() {
	app := &cli.App{
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "boot",
				Aliases: []string{"b"},
				Usage:   "path to a 256-byte DMG boot ROM to run before the cartridge",
			},
			&cli.IntFlag{
				Name:    "scale",
				Aliases: []string{"s"},
				Usage:   "integer zoom factor for the debugger's ASCII frame view",
				Value:   1,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "launch the interactive single-step debugger instead of running freely",
			},
		},
		Name:      "goboy",
		Usage:     "Run a Game Boy cartridge",
		UsageText: "goboy [options] <rom-path>",
		Version:   "v0.0.1",
		Action:    run,
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() < 1 {
		cli.ShowAppHelp(c)
		return cli.Exit("", 1)
	}
	romPath := c.Args().First()

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return cli.Exit(fmt.Errorf("reading ROM: %w", err), 2)
	}

	cart, err := cartridge.New(rom)
	if err != nil {
		return cli.Exit(fmt.Errorf("loading cartridge: %w", err), 2)
	}

	b := bus.New(cart)

	var d *driver.Driver
	if bootPath := c.String("boot"); bootPath != "" {
		bootROM, err := os.ReadFile(bootPath)
		if err != nil {
			return cli.Exit(fmt.Errorf("reading boot ROM: %w", err), 2)
		}
		b.SetBootROM(bootROM)
		d = driver.New(b, 0x0000)
	} else {
		d = driver.NewPostBoot(b)
	}

	if c.Bool("debug") {
		if err := debugger.Run(d.CPU, d.Bus, c.Int("scale")); err != nil {
			return cli.Exit(fmt.Errorf("debugger: %w", err), 3)
		}
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "panic:", r)
			os.Exit(3)
		}
	}()

	var runErr error
	d.ErrFunc = func(err error) { runErr = err }

	stop := make(chan struct{})
	d.Run(stop)
	if runErr != nil {
		return cli.Exit(fmt.Errorf("emulation: %w", runErr), 3)
	}
	return nil
}

// exitCodeFor recovers the exit code a cli.Exit error carries, defaulting to
// 1 for any other error the Action returns.
func exitCodeFor(err error) int {
	if ee, ok := err.(cli.ExitCoder); ok {
		return ee.ExitCode()
	}
	return 1
}
