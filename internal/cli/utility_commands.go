package cli

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

func runBrand(args []string) error {
	fs := flag.NewFlagSet("brand", flag.ContinueOnError)
	depth := fs.Int("depth", 1, "how many links deep to crawl")
	enableJS := fs.Bool("js", false, "render JavaScript while scraping")
	noPalette := fs.Bool("no-palette", false, "skip color palette extraction")
	dynamic := fs.Bool("dynamic", false, "enable dynamic brand extraction")
	deepthink := fs.Bool("deepthink", false, "enable advanced reasoning")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: storylinez brand [--depth n] [--js] [--no-palette] [--dynamic] [--deepthink] <website-url>")
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

	res, err := pipeline.New(c, e.pipelineOptions(ctx)).ExtractBrand(ctx, pipeline.BrandSpec{
		WebsiteURL:        fs.Arg(0),
		Depth:             *depth,
		EnableJS:          *enableJS,
		IncludePalette:    client.Bool(!*noPalette),
		DynamicExtraction: *dynamic,
		Deepthink:         *deepthink,
	})
	if res != nil {
		if perr := printJSON(res); perr != nil {
			return perr
		}
	}
	return err
}

func runTool(args []string) error {
	fs := flag.NewFlagSet("tool", flag.ContinueOnError)
	noWait := fs.Bool("no-wait", false, "print the started tool without waiting for its job")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: storylinez tool [--no-wait] <tool-type> <request.json>")
	}

	var req client.CreateToolRequest
	if err := readJSONFile(fs.Arg(1), &req); err != nil {
		return err
	}
	req.ToolType = client.ToolType(fs.Arg(0))

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

	ack, err := c.CreateTool(ctx, &req)
	if err != nil {
		return err
	}
	if *noWait {
		return printJSON(ack)
	}

	poll := e.cfg.PollOptions()
	poll.Logger = e.log
	tool, err := c.WaitForTool(ctx, ack.Tool.ToolID, poll)
	if tool != nil {
		if perr := printJSON(tool); perr != nil {
			return perr
		}
	}
	return err
}
