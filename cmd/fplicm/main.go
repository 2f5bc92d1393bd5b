package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler"
	"github.com/slowlang/fplicm/compiler/fplicm"
	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/irfile"
)

func main() {
	verbosity := func() *cli.Flag {
		return cli.NewFlag("verbosity,v", "", "tlog verbosity filter (topics: fplicm_paths,fplicm_hoist,dump_func_before,dump_func_after,ir_mutate)")
	}

	threshold := func() *cli.Flag {
		return cli.NewFlag("threshold", fplicm.DefaultThreshold, "min probability of the first successor to be frequent, 0 follows every first successor")
	}

	optCmd := &cli.Command{
		Name:        "opt",
		Description: "run a pass pipeline and print the resulting module",
		Action:      optAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("passes", compiler.DefaultPasses, "comma separated pass pipeline"),
			threshold(),
			cli.NewFlag("verify-each", false, "verify ir after every pass"),
			cli.NewFlag("print-before", false, "print the module before the pipeline"),
			verbosity(),
		},
	}

	printCmd := &cli.Command{
		Name:        "print",
		Description: "print modules",
		Action:      printAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			verbosity(),
		},
	}

	pathsCmd := &cli.Command{
		Name:        "paths",
		Description: "print frequent and infrequent paths and hoisting candidates of every loop",
		Action:      pathsAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			threshold(),
			verbosity(),
		},
	}

	app := &cli.Command{
		Name:        "fplicm",
		Description: "fplicm hoists loads which are invariant on the frequent path of a loop",
		Commands: []*cli.Command{
			optCmd,
			printCmd,
			pathsCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func setup(c *cli.Command) context.Context {
	tlog.SetVerbosity(c.String("verbosity"))

	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	return ctx
}

func fplicmOptions(c *cli.Command) fplicm.Options {
	opts := fplicm.DefaultOptions()
	opts.Threshold = c.Float64("threshold")

	return opts
}

func optAct(c *cli.Command) (err error) {
	ctx := setup(c)

	opts := compiler.DefaultOptions()
	opts.Passes = c.String("passes")
	opts.FPLICM = fplicmOptions(c)
	opts.Pass.VerifyEach = c.Bool("verify-each")

	for _, a := range c.Args {
		f, err := irfile.Load(ctx, a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		if c.Bool("print-before") {
			fmt.Printf("; before\n%s", ir.FormatModule(f.Module))
		}

		err = compiler.Optimize(ctx, f, opts)
		if err != nil {
			return errors.Wrap(err, "optimize %v", a)
		}

		fmt.Printf("%s", ir.FormatModule(f.Module))
	}

	return nil
}

func printAct(c *cli.Command) (err error) {
	ctx := setup(c)

	for _, a := range c.Args {
		f, err := irfile.Load(ctx, a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		fmt.Printf("%s", ir.FormatModule(f.Module))
	}

	return nil
}

func pathsAct(c *cli.Command) (err error) {
	ctx := setup(c)

	for _, a := range c.Args {
		f, err := irfile.Load(ctx, a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		rs, err := compiler.Inspect(ctx, f, fplicmOptions(c))
		if err != nil {
			return errors.Wrap(err, "inspect %v", a)
		}

		for _, r := range rs {
			if r.Skip != nil {
				fmt.Printf("%s: loop %%%s: skipped: %v\n", r.Func, r.Header, r.Skip)
				continue
			}

			fmt.Printf("%s: loop %%%s (preheader %%%s, freq %.3g)\n", r.Func, r.Header, r.Preheader, r.Freq)
			fmt.Printf("  frequent:   %v\n", r.Frequent)
			fmt.Printf("  infrequent: %v\n", r.Infrequent)

			for _, x := range r.Candidates {
				fmt.Printf("  candidate:  %s\n", x)
			}
		}
	}

	return nil
}
