package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

func runPipeline(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	resume := fs.String("resume", "", "result JSON of a pending or failed run to continue")
	out := fs.String("out", "", "also write the result JSON to this file")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: storylinez run [--resume <result.json>] [--out <file>] <spec.json>")
	}

	var spec pipeline.Spec
	if err := readJSONFile(fs.Arg(0), &spec); err != nil {
		return err
	}
	var prev *pipeline.Result
	if *resume != "" {
		prev = &pipeline.Result{}
		if err := readJSONFile(*resume, prev); err != nil {
			return err
		}
	}

	e, err := loadEnv(false)
	if err != nil {
		return err
	}
	c, err := e.client()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := pipeline.New(c, e.pipelineOptions(ctx))
	var res *pipeline.Result
	if prev != nil {
		res, err = orch.Resume(ctx, spec, prev)
	} else {
		res, err = orch.Run(ctx, spec)
	}

	if res != nil {
		if perr := printJSON(res); perr != nil {
			return perr
		}
		if *out != "" {
			if werr := writeJSONFile(*out, res); werr != nil {
				return werr
			}
		}
	}
	if pipeline.IsPending(err) {
		fmt.Fprintf(os.Stderr, "run is still pending at stage %s; continue it with --resume\n", pipeline.StageOf(err))
	}
	return err
}

func runEnqueue(args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: storylinez enqueue <spec.json>")
	}

	var spec pipeline.Spec
	if err := readJSONFile(fs.Arg(0), &spec); err != nil {
		return err
	}

	e, err := loadEnv(false)
	if err != nil {
		return err
	}
	svc, closeAll, err := e.pipelineService()
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer closeAll()

	run, err := svc.Enqueue(context.Background(), spec)
	if err != nil {
		return err
	}
	fmt.Println(run.ID)
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: storylinez status <run-id>")
	}

	e, err := loadEnv(false)
	if err != nil {
		return err
	}
	svc, closeAll, err := e.pipelineService()
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer closeAll()

	run, err := svc.Get(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	return printJSON(run)
}
