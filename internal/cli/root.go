// Package cli implements the storylinez command line.
package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		if !stdinIsTTY() {
			printRootUsage()
			return nil
		}
		return runMenu(nil)
	}

	switch args[0] {
	case "menu":
		return runMenu(args[1:])
	case "run":
		return runPipeline(args[1:])
	case "enqueue":
		return runEnqueue(args[1:])
	case "status":
		return runStatus(args[1:])
	case "brand":
		return runBrand(args[1:])
	case "tool":
		return runTool(args[1:])
	case "worker":
		return runWorker(args[1:])
	case "serve":
		return runServe(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("storylinez: drive the Storylinez video platform")
	fmt.Println()
	fmt.Println("Interactive:")
	fmt.Println("  storylinez            menu for project, prompt, storyboard, voiceover, sequence and render")
	fmt.Println()
	fmt.Println("Pipelines:")
	fmt.Println("  run [--resume <result.json>] [--out <file>] <spec.json>")
	fmt.Println("                        run a pipeline in the foreground and print its result")
	fmt.Println("  enqueue <spec.json>   queue a pipeline run for the worker")
	fmt.Println("  status <run-id>       print a queued run")
	fmt.Println()
	fmt.Println("Utilities:")
	fmt.Println("  brand <website-url>   scrape a website and extract its brand settings")
	fmt.Println("  tool <type> <request.json>")
	fmt.Println("                        run a creative tool (creative_brief, video_plan, shotlist, ...)")
	fmt.Println()
	fmt.Println("Services:")
	fmt.Println("  worker                execute queued runs and serve the status API")
	fmt.Println("  serve                 serve the status API only")
	fmt.Println()
	fmt.Println("Configuration is read from the environment, .env and storylinez.yaml.")
	fmt.Println("API_KEY and API_SECRET are required for anything that talks to the platform.")
}
