package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"ner-gazetteer/cmd"
	"ner-gazetteer/internal/core"
	"ner-gazetteer/internal/core/types"

	"github.com/schollz/progressbar/v3"
)

const (
	defaultText = "arddh"
	// texts annotated per ProcessBatch call in -input mode
	inputBatchSize = 64
)

type options struct {
	text    string
	input   string
	query   string
	asJSON  bool
	policy  core.MergePolicy
	workers int
}

type jsonResult struct {
	Entities []types.Entity
	Matched  *bool `json:"Matched,omitempty"`
}

func main() {
	var (
		envPath string
		opts    options
	)
	flag.StringVar(&envPath, "env", "", "path to load env from")
	flag.StringVar(&opts.text, "text", defaultText, "text to annotate")
	flag.StringVar(&opts.input, "input", "", "file with one text per line to annotate instead of -text")
	flag.StringVar(&opts.query, "query", "", "report whether each text matches this query, e.g. 'COUNT(NAME) > 0'")
	flag.BoolVar(&opts.asJSON, "json", false, "print results as json")
	flag.Parse()

	cfg := cmd.LoadConfig(envPath)
	opts.policy = cfg.Merge()
	opts.workers = cfg.Workers

	cleanup := cmd.InitModelRuntime(cfg)
	defer cleanup()

	pipeline, err := cmd.BuildPipeline(cfg)
	if err != nil {
		log.Fatalf("could not build pipeline: %v", err)
	}
	defer pipeline.Release()

	if err := run(pipeline, opts, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(pipeline *core.Pipeline, opts options, out io.Writer) error {
	var filter core.Filter
	if opts.query != "" {
		var err error
		if filter, err = core.ParseQuery(opts.query); err != nil {
			return err
		}
	}

	if opts.input == "" {
		doc, err := pipeline.Process(opts.text)
		if err != nil {
			return err
		}
		return printDocument(out, doc, filter, opts)
	}

	texts, err := readLines(opts.input)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(texts),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("annotating"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	for start := 0; start < len(texts); start += inputBatchSize {
		batch := texts[start:min(start+inputBatchSize, len(texts))]
		docs, err := pipeline.ProcessBatch(batch, opts.workers)
		if err != nil {
			return fmt.Errorf("error annotating lines %d-%d: %w", start+1, start+len(batch), err)
		}
		for _, doc := range docs {
			if err := printDocument(out, doc, filter, opts); err != nil {
				return err
			}
		}
		_ = bar.Add(len(batch))
	}
	return bar.Finish()
}

func printDocument(out io.Writer, doc *core.Document, filter core.Filter, opts options) error {
	entities := doc.Entities(opts.policy)

	var matched *bool
	if filter != nil {
		m := filter.Matches(doc.LabelToEntities(opts.policy))
		matched = &m
	}

	if opts.asJSON {
		if entities == nil {
			entities = []types.Entity{}
		}
		return json.NewEncoder(out).Encode(jsonResult{Entities: entities, Matched: matched})
	}

	if _, err := fmt.Fprintln(out, types.FormatEntities(entities)); err != nil {
		return err
	}
	if matched != nil {
		_, err := fmt.Fprintf(out, "matched: %t\n", *matched)
		return err
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening input file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}
	return lines, nil
}
