// Command jsonprobe inspects a JSON dataset without materializing it: it
// resolves the sources, derives the structural form from a bounded sample,
// plans partitions, and reports which fields a given selection would
// actually read.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"lazycol"
	"lazycol/internal/ctxlog"
	"lazycol/internal/datasource"
	"lazycol/internal/datasource/file"
	"lazycol/internal/datasource/httpds"
)

var (
	flagPattern   = flag.String("pattern", "", "glob pattern, path, or http(s) URL of the dataset")
	flagPathsFile = flag.String("paths-file", "", "file listing one source path per line (alternative to -pattern)")
	flagOneObj    = flag.Bool("one-obj", false, "sources hold exactly one JSON value per file")
	flagBlocksize = flag.Int64("blocksize", 0, "target bytes per partition (requires -delimiter to split files)")
	flagDelimiter = flag.String("delimiter", "", "byte sequence marking safe split points, e.g. \\n")
	flagLines     = flag.Int("lines", 0, "lines per partition (mutually exclusive with -blocksize)")
	flagByLines   = flag.Bool("by-lines", false, "force line-based form sampling")
	flagRows      = flag.Int("sample-rows", 0, "rows to sample in line mode")
	flagBytes     = flag.Int("sample-bytes", 0, "byte sample width in byte mode")
	flagSelect    = flag.String("select", "", "comma-separated field paths; report the columns a selection would read")
	flagJSON      = flag.Bool("json", false, "emit a machine-readable JSON summary")
	flagSave      = flag.Int("save-sample", 0, "write the first N bytes of the first source to a local file")
	flagVerbose   = flag.Bool("v", false, "enable debug logs")
)

// summary is the -json output shape.
type summary struct {
	Partitions  int                 `json:"partitions"`
	Form        string              `json:"form"`
	Fields      []string            `json:"fields"`
	ReadColumns map[string][]string `json:"read_columns,omitempty"`
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	if (*flagPattern == "") == (*flagPathsFile == "") {
		fatalf("exactly one of -pattern or -paths-file is required")
	}

	opt := lazycol.ReadOptions{
		Blocksize:         *flagBlocksize,
		LinesPerPartition: *flagLines,
		OneObjPerFile:     *flagOneObj,
		ForceByLines:      *flagByLines,
		SampleRows:        *flagRows,
		SampleBytes:       *flagBytes,
	}
	if *flagDelimiter != "" {
		opt.Delimiter = []byte(unescape(*flagDelimiter))
	}

	var (
		c   *lazycol.Collection
		err error
	)
	var paths []string
	if *flagPathsFile != "" {
		paths, err = file.ReadList(*flagPathsFile)
		if err != nil {
			fatalf("read paths file: %v", err)
		}
		c, err = lazycol.FromJSONPaths(ctx, paths, opt)
	} else {
		c, err = lazycol.FromJSON(ctx, *flagPattern, opt)
	}
	if err != nil {
		fatalf("%v", err)
	}

	form, err := c.Meta(ctx)
	if err != nil {
		fatalf("derive form: %v", err)
	}

	sum := summary{
		Partitions: c.NPartitions(),
		Form:       form.String(),
		Fields:     form.FieldNames(),
	}

	if *flagSelect != "" {
		sel, err := c.SelectFields(strings.Split(*flagSelect, ",")...)
		if err != nil {
			fatalf("select: %v", err)
		}
		sum.ReadColumns = sel.NecessaryColumns()
	}

	if *flagSave > 0 {
		if err := saveSample(ctx, paths, *flagSave); err != nil {
			fatalf("save sample: %v", err)
		}
	}

	if *flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			fatalf("%v", err)
		}
		return
	}

	fmt.Printf("partitions: %d\n", sum.Partitions)
	fmt.Printf("form:       %s\n", sum.Form)
	if len(sum.Fields) > 0 {
		fmt.Printf("fields:     %s\n", strings.Join(sum.Fields, ", "))
	}
	for layer, cols := range sum.ReadColumns {
		if cols == nil {
			fmt.Printf("read %s: all fields\n", layer)
			continue
		}
		fmt.Printf("read %s: %s\n", layer, strings.Join(cols, ", "))
	}
}

// saveSample fetches the first n bytes of the first source and writes them
// next to the working directory, using a URL-safe name for remote sources.
func saveSample(ctx context.Context, listed []string, n int) error {
	var input datasource.Input
	switch {
	case len(listed) > 0:
		input = datasource.Path(listed[0])
	default:
		input = datasource.Pattern(*flagPattern)
	}
	sources, err := datasource.Resolve(ctx, []datasource.Input{input})
	if err != nil {
		return err
	}
	src := sources[0]

	rc, err := src.Src.OpenRange(ctx, 0, int64(n))
	if err != nil {
		return err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return err
	}

	name := filepath.Base(src.Path) + ".sample"
	if strings.HasPrefix(src.Path, "http://") || strings.HasPrefix(src.Path, "https://") {
		name = httpds.SafeFilenameFromURL(src.Path) + ".sample"
	}
	return os.WriteFile(name, b, 0o644)
}

// unescape converts the literal two-character sequences "\n", "\r", and
// "\t" a shell passes through into their control characters.
func unescape(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t")
	return r.Replace(s)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
