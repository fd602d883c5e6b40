package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/ops"
	"github.com/hpungsan/rxscripts/internal/script"
	"github.com/hpungsan/rxscripts/internal/tiles"
	"github.com/hpungsan/rxscripts/internal/web"
)

// jsonFlag switches a command from text to indented JSON output.
func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"}
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps ops.Deps) *cli.App {
	app := &cli.App{
		Name:    "rxscripts",
		Usage:   "Extract, search and re-inject RPG Maker XP scripts",
		Version: Version,
		Commands: []*cli.Command{
			extractCmd(deps),
			saveCmd(deps),
			showCmd(deps),
			searchCmd(deps),
			injectCmd(deps),
			listCmd(deps),
			historyCmd(deps),
			serveCmd(deps),
			tilesCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// extractCmd creates the extract command.
func extractCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Write every script in a container to its own file",
		ArgsUsage: "<container>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Target directory (default: <output_root>/<timestamp>)"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			container, err := requireArgs(c, 1, "<container>")
			if err != nil {
				return outputError(err)
			}

			output, err := ops.ExtractAll(c.Context, deps, ops.ExtractAllInput{
				ContainerPath: container[0],
				OutputDir:     c.String("out"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Extracted %d scripts to %s\n", output.Written, output.Directory)
			if len(output.Blank) > 0 {
				fmt.Fprintf(w, "Not written (no usable file name): %d\n", len(output.Blank))
			}
			printSkipped(w, output.Skipped)
			printCollisions(w, output.Collisions, "last one written wins")
			return nil
		},
	}
}

// saveCmd creates the save command.
func saveCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Write one script, by exact display name, to a file",
		ArgsUsage: "<container> <name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Target directory (default: saved_dir)"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2, "<container> <name>")
			if err != nil {
				return outputError(err)
			}

			output, err := ops.ExtractOne(c.Context, deps, ops.ExtractOneInput{
				ContainerPath: args[0],
				Name:          args[1],
				OutputDir:     c.String("out"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}
			fmt.Fprintf(c.App.Writer, "Saved %q to %s\n", output.Name, output.Path)
			return nil
		},
	}
}

// showCmd creates the show command.
func showCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the source of one script",
		ArgsUsage: "<container> [name]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Usage: "Address the script by container position instead of name"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1, "<container> [name]")
			if err != nil {
				return outputError(err)
			}

			input := ops.ShowInput{ContainerPath: args[0], Name: c.Args().Get(1)}
			if c.IsSet("index") {
				index := c.Int("index")
				input.Index = &index
			}

			output, err := ops.Show(c.Context, deps, input)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}
			fmt.Fprintf(c.App.Writer, "=== %s ===\n%s\n", output.Name, output.Source)
			return nil
		},
	}
}

// searchCmd creates the search command.
func searchCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find the scripts that define a method",
		ArgsUsage: "<container> <identifier>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "precise", Aliases: []string{"p"}, Usage: "List identifiers with the Ruby parser when nothing matches"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2, "<container> <identifier>")
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Search(c.Context, deps, ops.SearchInput{
				ContainerPath: args[0],
				Identifier:    args[1],
				Precise:       c.Bool("precise"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}
			w := c.App.Writer
			if len(output.Matches) > 0 {
				fmt.Fprintf(w, "'%s' is defined in:\n", output.Identifier)
				for _, m := range output.Matches {
					fmt.Fprintf(w, "  %s (line %s)\n", m.Name, joinInts(m.Lines))
				}
			} else {
				fmt.Fprintf(w, "'%s' was not found. %d identifiers are defined:\n", output.Identifier, len(output.Identifiers))
				for _, id := range output.Identifiers {
					fmt.Fprintf(w, "  %s\n", id)
				}
			}
			printSkipped(w, output.Skipped)
			return nil
		},
	}
}

// injectCmd creates the inject command.
func injectCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "inject",
		Usage:     "Replace scripts with edited files and write a new container",
		ArgsUsage: "<container> <file-or-glob>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output container (default: <base>_updated<ext>)"},
			&cli.BoolFlag{Name: "strict", Usage: "Exit non-zero when any file is not found or fails"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2, "<container> <file-or-glob>...")
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Inject(c.Context, deps, ops.InjectInput{
				ContainerPath: args[0],
				Files:         args[1:],
				OutputPath:    c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				if err := outputJSON(c.App.Writer, output); err != nil {
					return err
				}
			} else {
				printInject(c.App.Writer, output)
			}

			if c.Bool("strict") && output.Tally.NotFound+output.Tally.Errors > 0 {
				return cli.Exit(fmt.Sprintf("%d files not injected", output.Tally.NotFound+output.Tally.Errors), 1)
			}
			return nil
		},
	}
}

func printInject(w io.Writer, output *ops.InjectOutput) {
	for _, r := range output.Results {
		switch r.Status {
		case ops.StatusUpdated, ops.StatusUnchanged:
			fmt.Fprintf(w, "  %-10s %s <- %s\n", r.Status, r.Script, r.File)
		case ops.StatusNotFound:
			fmt.Fprintf(w, "  %-10s %s (no script named %q)\n", r.Status, r.File, r.SafeName)
		default:
			fmt.Fprintf(w, "  %-10s %s: %s\n", r.Status, r.File, r.Error)
		}
	}
	t := output.Tally
	fmt.Fprintf(w, "Updated: %d  Unchanged: %d  Not found: %d  Errors: %d\n", t.Updated, t.Unchanged, t.NotFound, t.Errors)
	if output.OutputPath != "" {
		fmt.Fprintf(w, "Wrote %s\n", output.OutputPath)
	} else {
		fmt.Fprintln(w, "No script changed; nothing written")
	}
	printCollisions(w, output.Collisions, "the first script was updated")
}

// listCmd creates the list command.
func listCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List every entry of a container",
		ArgsUsage: "<container>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1, "<container>")
			if err != nil {
				return outputError(err)
			}

			output, err := ops.List(c.Context, deps, ops.ListInput{ContainerPath: args[0]})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tNAME\tFILE\tBYTES\tSTATUS")
			for _, e := range output.Entries {
				if e.Kind == ops.KindOpaque {
					fmt.Fprintf(tw, "%d\t\t%s\t\t\t%s\n", e.Index, e.Summary, e.Kind)
					continue
				}
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%s\n", e.Index, *e.ID, e.Name, e.SafeName, e.SourceBytes, e.Status)
			}
			if err := tw.Flush(); err != nil {
				return outputError(errors.NewInternal(err))
			}
			fmt.Fprintf(c.App.Writer, "%d scripts, %d other entries, %d undecodable\n", output.Records, output.Opaque, output.Undecoded)
			printCollisions(c.App.Writer, output.Collisions, "")
			return nil
		},
	}
}

// historyCmd creates the history command.
func historyCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show journaled extract, save and inject runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "container", Aliases: []string{"c"}, Usage: "Only runs on this container"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum runs (max 500)"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(deps, ops.HistoryInput{
				ContainerPath: c.String("container"),
				Limit:         c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOP\tCONTAINER\tOUTPUT\tWRITTEN\tUPDATED\tNOT FOUND\tERRORS")
			for _, r := range output.Runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					r.ID, r.Op, r.ContainerPath, r.OutputPath, r.Written, r.Updated, r.NotFound, r.Errors)
			}
			if err := tw.Flush(); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Browse a container's scripts in a local web viewer",
		ArgsUsage: "<container>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8740, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1, "<container>")
			if err != nil {
				return outputError(err)
			}
			if err := ops.ValidateContainerPath(args[0]); err != nil {
				return outputError(err)
			}
			if port := c.Int("port"); port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}

			srv := web.NewServer(deps, args[0], Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// tilesCmd creates the tiles command.
func tilesCmd(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "tiles",
		Usage:     "Rescale 256x256 character sheets to 128x192 (<name>_gen3.<ext>)",
		ArgsUsage: "<image>...",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one .png or .jpg image is required"))
			}

			results, err := tiles.ConvertFiles(c.Context, c.Args().Slice(), deps.Logger)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, results)
			}
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
					continue
				}
				fmt.Fprintf(c.App.Writer, "Saved processed image to %s\n", r.Output)
			}
			if failed > 0 {
				fmt.Fprintf(c.App.Writer, "%d of %d images failed\n", failed, len(results))
			}
			return nil
		},
	}
}

// requireArgs returns the positional arguments, or INVALID_REQUEST when
// fewer than n were given.
func requireArgs(c *cli.Context, n int, usage string) ([]string, error) {
	if c.NArg() < n {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("usage: rxscripts %s %s", c.Command.Name, usage))
	}
	return c.Args().Slice(), nil
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if rxErr, ok := err.(*errors.RxError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rxErr.Code, rxErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func printSkipped(w io.Writer, skipped []ops.SkippedRecord) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "Skipped %d scripts that could not be decoded:\n", len(skipped))
	for _, s := range skipped {
		fmt.Fprintf(w, "  #%d %s (%s)\n", s.Index, s.Name, s.Reason)
	}
}

func printCollisions(w io.Writer, collisions []script.Collision, note string) {
	for _, col := range collisions {
		msg := fmt.Sprintf("Name collision: %s <- %s", col.SafeName, strings.Join(col.Names, ", "))
		if note != "" {
			msg += "; " + note
		}
		fmt.Fprintln(w, msg)
	}
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
