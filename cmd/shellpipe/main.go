package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shellpipe/internal/app"
	"shellpipe/internal/config"
	"shellpipe/internal/core"
	"shellpipe/internal/ledger"
	"shellpipe/internal/security"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  shellpipe run <pipeline.yaml>
  shellpipe exec [-input TEXT] [-pipefail] -- CMD ARGS... [-- CMD ARGS...]
  shellpipe demo
  shellpipe inspect <ledger.jsonl>
  shellpipe verify [-keys DIR] <ledger.jsonl>
  shellpipe keygen <dir>`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	var err error
	switch os.Args[1] {
	case "run":
		code, err = runFile(ctx, os.Args[2:])
	case "exec":
		code, err = execArgs(ctx, os.Args[2:])
	case "demo":
		code, err = demo(ctx)
	case "inspect":
		err = inspect(os.Args[2:])
	case "verify":
		err = verify(os.Args[2:])
	case "keygen":
		err = keygen(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "shellpipe:", err)
		var spawnErr *core.SpawnError
		if errors.As(err, &spawnErr) {
			os.Exit(127)
		}
		os.Exit(1)
	}
	os.Exit(code)
}

// runFile runs a pipeline definition through the full runner: logs, ledger and metrics.
func runFile(ctx context.Context, args []string) (int, error) {
	if len(args) != 1 {
		usage()
	}
	def, err := core.LoadDefinition(args[0])
	if err != nil {
		return 0, err
	}

	cfg, err := config.Load()
	if err != nil {
		return 0, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return 0, err
	}
	defer a.Close()

	run, err := a.Runner.Run(ctx, def)
	if err != nil {
		return 0, err
	}
	os.Stdout.Write(run.Result.Stdout)
	os.Stderr.Write(run.Result.Stderr)
	return run.ExitCode, nil
}

// execArgs runs an ad-hoc chain; "--" separates stages.
func execArgs(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	input := fs.String("input", "", "text fed to the first stage")
	pipefail := fs.Bool("pipefail", false, "exit with the last non-zero stage status")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}

	cmds := splitStages(fs.Args())
	stage, err := core.Build(cmds)
	if err != nil {
		return 0, err
	}

	var in []byte
	if *input != "" {
		in = []byte(*input)
	}

	results, err := core.RunAll(ctx, stage, in)
	if err != nil {
		return 0, err
	}
	last := results[len(results)-1]
	os.Stdout.Write(last.Stdout)
	os.Stderr.Write(last.Stderr)
	if *pipefail {
		return core.Pipefail(results), nil
	}
	return last.ExitCode, nil
}

func splitStages(args []string) []core.Command {
	var cmds []core.Command
	var cur []string
	for _, a := range args {
		if a == "--" {
			if len(cur) > 0 {
				cmds = append(cmds, core.Cmd(cur...))
			}
			cur = nil
			continue
		}
		cur = append(cur, a)
	}
	if len(cur) > 0 {
		cmds = append(cmds, core.Cmd(cur...))
	}
	return cmds
}

// demo is `ls -la /etc | grep rc | sed 's/rc$//'`.
func demo(ctx context.Context) (int, error) {
	p, err := core.Bash("ls", "-la", "/etc")
	if err != nil {
		return 0, err
	}
	grep, err := core.Bash("grep", "rc")
	if err != nil {
		_ = p.Close()
		return 0, err
	}
	sed, err := core.Bash("sed", "s/rc$//")
	if err != nil {
		_ = p.Then(grep).Close()
		return 0, err
	}

	res, err := p.Then(grep).Then(sed).Run(ctx, nil)
	if err != nil {
		return 0, err
	}
	fmt.Println(res.Text())
	return res.ExitCode, nil
}

func inspect(args []string) error {
	if len(args) != 1 {
		usage()
	}
	l, err := ledger.OpenLedger(args[0])
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	for _, b := range l.Blocks() {
		fmt.Printf("Index=%d Time=%s Pipeline=%s Exit=%d Hash=%.16s\n  %s\n",
			b.Index, b.Timestamp, b.Pipeline, b.ExitCode, b.Hash, b.Command)
	}
	return nil
}

// verify checks the ledger against the public key in the key directory,
// KEY_DIR unless -keys is given.
func verify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	keyDir := fs.String("keys", "", "directory holding ledger.pub (default $KEY_DIR)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		usage()
	}

	if *keyDir == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		*keyDir = cfg.Storage.KeyDir
	}
	pub, err := security.LoadKeyDirPublicKey(*keyDir)
	if err != nil {
		return err
	}

	l, err := ledger.OpenLedger(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if err := l.VerifyChain(pub); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Printf("ledger verification ok (%d blocks)\n", l.NextIndex())
	return nil
}

func keygen(args []string) error {
	if len(args) != 1 {
		usage()
	}
	_, _, created, err := security.EnsureKeyPair(args[0])
	if err != nil {
		return err
	}
	if !created {
		fmt.Println("keys already exist in", args[0])
		return nil
	}
	fmt.Println("generated ledger keys in", args[0])
	return nil
}
