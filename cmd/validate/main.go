// Command validate checks match configuration files (JSON or YAML) in a
// directory. It checks:
//   - the document against the configuration schema
//   - field ranges, die range, formula and default event
//   - items that no player can ever carry
//   - enemy tolls that can empty a starting purse in one encounter
//
// Files that fail the first two checks are invalid; the others are reported as warnings.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/gsp-board/game/config"
)

// ValidationResult captures the outcome of validating a single file.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
}

// validateConfig loads and checks a single configuration file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	cfg, err := config.LoadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	kinds := make([]string, 0, len(cfg.MapEvents.Items))
	for kind := range cfg.MapEvents.Items {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if item := cfg.MapEvents.Items[kind]; item.Weight > cfg.StartingMaxWeight {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("item %s weighs %d, more than starting_max_weight %d", kind, item.Weight, cfg.StartingMaxWeight))
		}
	}

	if worst := cfg.DieMax * cfg.MapEvents.EnemyToll; cfg.StartingCurrency > 0 && worst >= cfg.StartingCurrency {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("one enemy encounter can take up to %d gold, the whole starting purse of %d", worst, cfg.StartingCurrency))
	}

	if cfg.StatusMaxWeight == 0 {
		result.Warnings = append(result.Warnings, "status_max_weight is 0, every travel distance is 0")
	}

	return result
}

var errInvalid = errors.New("some configurations have errors")

// configFiles lists the JSON and YAML files in dir in name order
func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// report prints every result and returns whether all files were valid
func report(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(w, "VALID")
		} else {
			fmt.Fprintln(w, "INVALID")
			allValid = false
		}
		for _, e := range result.Errors {
			fmt.Fprintln(w, "  error: "+e)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(w, "  warning: "+warning)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "All configurations are valid")
	} else {
		fmt.Fprintln(w, "Some configurations have errors")
	}
	return allValid
}

func main() {
	cmd := &cli.Command{
		Name:      "validate",
		Usage:     "Validate match configuration files",
		ArgsUsage: "[files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "configs", Usage: "Directory to validate when no files are given"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				if files, err = configFiles(cmd.String("dir")); err != nil {
					return fmt.Errorf("finding config files: %w", err)
				}
			}
			if len(files) == 0 {
				return fmt.Errorf("no config files found")
			}

			results := make([]ValidationResult, 0, len(files))
			for _, file := range files {
				results = append(results, validateConfig(file))
			}
			if !report(os.Stdout, results) {
				return errInvalid
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
