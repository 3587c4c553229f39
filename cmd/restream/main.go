// Command restream replays captured chat completion streams through the
// reconstructor and prints the resulting events.
//
// A capture is a JSONL file holding one OpenAI-compatible
// chat.completion.chunk per line, as logged from a streaming response.
//
// Usage:
//
//	restream [options] PATTERN...
//
// Patterns support ** for recursive matching. Events are printed as styled
// text, or as one JSON object per line with --format=json. With --save, the
// assembled assistant message of each capture is written to DIR/NAME.json.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/restream"
	rsjson "github.com/fwojciec/restream/json"
	"github.com/fwojciec/restream/reconstruct"
	"github.com/jessevdk/go-flags"
)

type options struct {
	Format      string `short:"f" long:"format" choice:"text" choice:"json" default:"text" description:"Output format"`
	Threshold   int    `short:"t" long:"threshold" default:"4000" description:"Reasoning coalesce threshold in characters"`
	Separator   string `long:"separator" description:"Text emitted before the first tool call of a response without text"`
	NoSentinels bool   `long:"no-sentinels" description:"Disable inline tool call section parsing"`
	NoTags      bool   `long:"no-tags" description:"Disable inline thinking tag parsing"`
	OpenTag     string `long:"open-tag" default:"<think>" description:"Inline thinking open tag"`
	CloseTag    string `long:"close-tag" default:"</think>" description:"Inline thinking close tag"`
	Width       int    `short:"w" long:"width" default:"120" description:"Maximum display width of tool call arguments"`
	Save        string `short:"o" long:"save" value-name:"DIR" description:"Save assembled messages to DIR"`
	Verbose     bool   `short:"v" long:"verbose" description:"Log dropped tool calls and skipped parts"`

	Args struct {
		Patterns []string `positional-arg-name:"PATTERN" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "restream: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			fmt.Fprintln(stdout, err)
			return nil
		}
		return err
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	paths, err := expandPatterns(opts.Args.Patterns)
	if err != nil {
		return err
	}

	var (
		out restream.Sink
		rnd *renderer
	)
	switch opts.Format {
	case "json":
		out = rsjson.NewEventWriter(stdout)
	default:
		rnd = newRenderer(stdout, restream.DefaultTheme(), opts.Width)
		out = rnd
	}

	var errs []error
	for _, path := range paths {
		if rnd != nil && len(paths) > 1 {
			if err := rnd.header(path); err != nil {
				return err
			}
		}
		asm := restream.NewAssembler()
		r := reconstruct.New(restream.MultiSink(out, asm), reconstructOptions(opts, logger)...)
		if err := replay(ctx, r, path); err != nil {
			if ctx.Err() != nil {
				return err
			}
			if rnd != nil {
				_ = rnd.failure(path, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if rnd != nil {
			_ = rnd.newline()
		}
		if opts.Save != "" {
			dst := filepath.Join(opts.Save, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".json")
			if err := rsjson.Save(dst, asm.Message()); err != nil {
				errs = append(errs, fmt.Errorf("save %s: %w", dst, err))
				continue
			}
			logger.Debug("saved message", "path", dst)
		}
	}
	return errors.Join(errs...)
}

func replay(ctx context.Context, r *reconstruct.Reconstructor, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	// The source closes f.
	return r.Run(ctx, rsjson.NewSource(f))
}

func reconstructOptions(opts options, logger *slog.Logger) []reconstruct.Option {
	ropts := []reconstruct.Option{
		reconstruct.WithLogger(logger),
		reconstruct.WithCoalesceThreshold(opts.Threshold),
		reconstruct.WithToolCallSeparator(opts.Separator),
	}
	if opts.NoSentinels {
		ropts = append(ropts, reconstruct.WithoutSentinels())
	}
	if opts.NoTags {
		ropts = append(ropts, reconstruct.WithoutThinkingTags())
	} else {
		ropts = append(ropts, reconstruct.WithThinkingTags(opts.OpenTag, opts.CloseTag))
	}
	return ropts
}

// expandPatterns resolves glob patterns to a sorted, de-duplicated list of
// regular files. A pattern that matches nothing is an error.
func expandPatterns(patterns []string) ([]string, error) {
	var paths []string
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("invalid glob pattern: %s", p)
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no captures match %s", p)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}
