// Command versewatch detects and resolves scripture references in
// transcript text. It runs one-off detections and lookups, and serves the
// engine over HTTP, WebSocket and Kafka.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
)

const version = "0.4.0"

// CLI defines the command-line interface for versewatch.
type CLI struct {
	Globals `embed:""`

	Detect       DetectCmd       `cmd:"" help:"Detect references in text (arguments or stdin lines)"`
	Lookup       LookupCmd       `cmd:"" help:"Look up a reference such as \"John 3:16-18\""`
	Translations TranslationsCmd `cmd:"" help:"List available translations"`
	Serve        ServeCmd        `cmd:"" help:"Start the HTTP and WebSocket server"`
	Ingest       IngestCmd       `cmd:"" help:"Consume transcript events from Kafka"`
	Report       ReportCmd       `cmd:"" help:"Build a missed-reference report from a segment history"`
	Version      VersionCmd      `cmd:"" help:"Print version information"`
}

// Globals are the flags shared by every command.
type Globals struct {
	Config   string `short:"c" help:"Configuration file" type:"path" env:"VERSEWATCH_CONFIG"`
	LogLevel string `name:"log-level" help:"Override the configured log level (debug, info, warn, error)"`
}

// streams are the command's standard input and output.
type streams struct {
	in  io.Reader
	out io.Writer
}

func run(args []string, in io.Reader, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("versewatch"),
		kong.Description("VerseWatch - scripture reference detection for live transcripts"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(out, os.Stderr),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return ctx.Run(&cli.Globals, &streams{in: in, out: out})
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "versewatch: %v\n", err)
		os.Exit(1)
	}
}
