// Package main plots time series of transports across vertical sections and
// computes weighted horizontal statistics of model residuals against
// observational climatology.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rmshkv/mom6-tools/internal/config"
	"github.com/rmshkv/mom6-tools/internal/panel"
	"github.com/rmshkv/mom6-tools/internal/usecase"
)

const version = "0.1.0"

func main() {
	label := flag.String("label", "", "Label to add to the output files")
	caseName := flag.String("case", "", "Case name override")
	outdir := flag.String("outdir", ".", "Directory in which to place plots")
	yearStart := flag.Int("ys", 0, "Start year to plot")
	yearEnd := flag.Int("ye", 1000, "Final year to plot")
	debug := flag.Bool("debug", false, "Print statements for debugging purposes")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("horizontal-mean version %s\n", version)
		return
	}
	if flag.NArg() != 1 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *caseName != "" {
		cfg.Case.Name = *caseName
	}
	if *yearStart != 0 {
		cfg.Climo.StartYear = *yearStart
	}
	if *yearEnd != 1000 {
		cfg.Climo.EndYear = *yearEnd
	}

	log.Printf("Case: %s", cfg.Case.Name)
	log.Printf("Years: %d to %d", cfg.Climo.StartYear, cfg.Climo.EndYear)

	diag, err := usecase.NewDiagnostics(cfg, *debug)
	if err != nil {
		log.Fatalf("Failed to initialize diagnostics: %v", err)
	}

	if err := os.MkdirAll(*outdir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// Residual statistics per variable.
	allStats := make([]*usecase.VariableStats, 0, len(diag.Variables()))
	for _, v := range diag.Variables() {
		log.Printf("Reducing residual for %s", v)
		stats, err := diag.ResidualStats(v)
		if err != nil {
			log.Fatalf("Failed to reduce %s: %v", v, err)
		}
		allStats = append(allStats, stats)
	}
	statsPath := filepath.Join(*outdir, outputName(cfg.Case.Name, *label, "stats.json"))
	if err := writeStats(statsPath, allStats); err != nil {
		log.Fatalf("Failed to write stats: %v", err)
	}
	log.Printf("Wrote %s", statsPath)

	// Transport section comparison figure.
	sections, failures := diag.TransportSections()
	for _, ferr := range failures {
		log.Printf("WARNING: unable to process %v", ferr)
	}
	if len(sections) > 0 {
		plotPath := filepath.Join(*outdir, outputName(cfg.Case.Name, *label, "transports.png"))
		if err := panel.Render(sections, diag.ObservedFlows(), true, plotPath); err != nil {
			log.Fatalf("Failed to render transport panels: %v", err)
		}
		log.Printf("Wrote %s", plotPath)
	}
}

func outputName(caseName, label, suffix string) string {
	if label != "" {
		return fmt.Sprintf("%s.%s.%s", caseName, label, suffix)
	}
	return fmt.Sprintf("%s.%s", caseName, suffix)
}

func writeStats(path string, stats []*usecase.VariableStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printUsage() {
	fmt.Printf("horizontal-mean v%s\n\n", version)
	fmt.Println("Plots time series of transports across vertical sections and computes")
	fmt.Println("weighted horizontal mean/RMSE of model residuals against observations.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  horizontal-mean [flags] <diag_config.yml>")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -label s    Label to add to the output files")
	fmt.Println("  -case s     Case name override (default from config)")
	fmt.Println("  -outdir d   Directory in which to place plots (default: .)")
	fmt.Println("  -ys n       Start year to plot (default: 0)")
	fmt.Println("  -ye n       Final year to plot (default: 1000)")
	fmt.Println("  -debug      Print statements for debugging purposes")
	fmt.Println("  -version    Show version information")
}
