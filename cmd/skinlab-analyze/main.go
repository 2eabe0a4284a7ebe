// Command skinlab-analyze uploads a photo to a running server and prints the
// streamed analysis.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/dfeirstein/the-skin-lab/internal/client"
	"github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("skinlab-analyze", flag.ContinueOnError)
	flags.SetOutput(stderr)
	server := flags.String("server", envOr("SKINLAB_SERVER", "http://localhost:8080"), "analysis server base URL")
	quiet := flags.Bool("quiet", false, "do not echo model output while it streams")
	verbose := flags.Bool("v", false, "print the server's error message on failure")
	rawJSON := flags.Bool("json", false, "print the analysis as JSON instead of a summary")
	mediaType := flags.String("type", "", "media type of the photo (default: from the file extension)")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: skinlab-analyze [flags] <photo>")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return 2
	}

	path := flags.Arg(0)
	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "open photo: %v\n", err)
		return 1
	}
	defer file.Close()

	declared := *mediaType
	if declared == "" {
		declared = client.MediaTypeFromFilename(path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var onContent func(string)
	if !*quiet {
		onContent = func(fragment string) { fmt.Fprint(stderr, fragment) }
	}

	c := client.New(*server, nil, nil)
	outcome, err := c.Analyze(ctx, client.Upload{
		Reader:    file,
		Filename:  filepath.Base(path),
		MediaType: declared,
	}, onContent)
	if !*quiet {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		color.New(color.FgRed).Fprintln(stderr, client.UserMessage(err))
		if *verbose {
			fmt.Fprintf(stderr, "  %v\n", err)
			var analysisErr *client.AnalysisError
			if !errors.As(err, &analysisErr) {
				fmt.Fprintf(stderr, "  server: %s\n", *server)
			}
		}
		return 1
	}

	if *rawJSON {
		var pretty strings.Builder
		enc := json.NewEncoder(&pretty)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome.Analysis); err != nil {
			fmt.Fprintf(stderr, "format analysis: %v\n", err)
			return 1
		}
		fmt.Fprint(stdout, pretty.String())
		return 0
	}

	result, err := outcome.Result()
	if err != nil {
		fmt.Fprintf(stderr, "decode analysis: %v\n", err)
		return 1
	}
	render(stdout, result)
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func render(w io.Writer, r *analysis.Result) {
	heading := color.New(color.FgCyan, color.Bold)
	label := color.New(color.Bold)

	heading.Fprintf(w, "Skin score: %g/10\n", r.SkinScore)
	label.Fprint(w, "Skin type: ")
	fmt.Fprintln(w, r.SkinType)
	list(w, label, "Primary concerns", r.PrimaryConcerns)

	if len(r.RecommendedTreatments) > 0 {
		fmt.Fprintln(w)
		heading.Fprintln(w, "Recommended treatments")
		for _, t := range r.RecommendedTreatments {
			label.Fprintf(w, "  %s", t.Name)
			fmt.Fprintf(w, " (%s)\n", t.Frequency)
			fmt.Fprintf(w, "    %s. %s\n", t.Purpose, t.ExpectedResults)
		}
	}

	fmt.Fprintln(w)
	heading.Fprintln(w, "Timeline")
	list(w, label, "0-3 months", r.Timeline.Immediate)
	list(w, label, "3-6 months", r.Timeline.Enhancement)
	list(w, label, "6+ months", r.Timeline.Maintenance)

	fmt.Fprintln(w)
	heading.Fprintln(w, "Home care")
	list(w, label, "Morning", r.Skincare.Morning)
	list(w, label, "Evening", r.Skincare.Evening)
	list(w, label, "Weekly", r.Skincare.Weekly)

	fmt.Fprintln(w)
	heading.Fprintln(w, "Investment")
	fmt.Fprintf(w, "  Initial: %s\n  First year: %s\n", r.Investment.Initial, r.Investment.FirstYear)
}

func list(w io.Writer, label *color.Color, name string, items []string) {
	if len(items) == 0 {
		return
	}
	label.Fprintf(w, "  %s: ", name)
	fmt.Fprintln(w, strings.Join(items, ", "))
}
