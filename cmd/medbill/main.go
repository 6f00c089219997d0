package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"medbill/internal/config"
	"medbill/internal/csvexport"
	"medbill/internal/domain"
	"medbill/internal/explain"
	"medbill/internal/extractor/jsonfile"
	"medbill/internal/extractor/xlsx"
	"medbill/internal/parse"
	"medbill/internal/port"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	input := flag.String("input", "", "extracted document payload (.json) or workbook (.xlsx)")
	outDir := flag.String("out", "out", "output directory")
	writeCSV := flag.Bool("csv", false, "also write a ledger CSV next to parsed.json")
	debug := flag.Bool("debug", false, "enable debug diagnostics")
	flag.Parse()

	if *input == "" {
		return fmt.Errorf("missing required -input flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *debug {
		cfg.Debug = true
	}

	explainer, err := explain.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build explainer: %w", err)
	}

	extractor, err := pickExtractor(*input)
	if err != nil {
		return err
	}

	ctx := context.Background()
	extraction, err := extractor.Extract(ctx, *input)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	doc := parse.NewPipeline(cfg, explainer).Parse(ctx, *extraction)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := writeJSON(doc, filepath.Join(*outDir, "parsed.json")); err != nil {
		return err
	}
	if *writeCSV {
		name := strings.TrimSuffix(filepath.Base(*input), filepath.Ext(*input))
		if err := writeLedgerCSV(doc, filepath.Join(*outDir, csvexport.BuildFilename(name))); err != nil {
			return err
		}
	}

	log.Printf("artifacts written to %s", *outDir)
	return nil
}

func pickExtractor(path string) (port.DocumentExtractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return xlsx.New(), nil
	case ".json":
		return jsonfile.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, filepath.Ext(path))
	}
}

func writeJSON(doc *domain.ParsedDocument, path string) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeLedgerCSV(doc *domain.ParsedDocument, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(csvexport.BOM); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w := csvexport.NewWriter(f)
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.WriteLines(doc.Lines); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}
