package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"progressreport/analysis"
	"progressreport/internal/config"
	"progressreport/internal/container"
	"progressreport/qa"
	"progressreport/report"
	"progressreport/tracker"
)

// loadConfig конфигурация из окружения с переопределениями из флагов
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if rulesFile != "" {
		cfg.RulesFile = rulesFile
	}
	if variantName != "" {
		cfg.ProjectVariant = variantName
	}
	if workerCount > 0 {
		cfg.WorkerCount = workerCount
	}
	if chunkSize > 0 {
		cfg.ChunkSize = chunkSize
	}
	if savePath != "" {
		cfg.DatabasePath = savePath
	}
	return cfg, nil
}

func loadTracker() ([]tracker.Record, error) {
	if strings.EqualFold(filepath.Ext(trackerPath), ".csv") {
		if towerName == "" {
			return nil, fmt.Errorf("--tower is required for a CSV tracker sheet")
		}
		return tracker.LoadCSV(trackerPath, towerName)
	}
	return tracker.LoadWorkbook(trackerPath)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		return err
	}
	if err := c.Initialize(ctx, savePath != ""); err != nil {
		return err
	}
	defer c.Close()

	snapshot, err := qa.LoadSnapshotJSON(qaDir)
	if err != nil {
		return err
	}
	records, err := loadTracker()
	if err != nil {
		return err
	}

	towers := append([]string(nil), towerList...)
	if towerName != "" {
		towers = append(towers, towerName)
	}

	result, err := c.Analyzer.Run(ctx, analysis.Input{
		Variant:  cfg.ProjectVariant,
		Snapshot: snapshot,
		Tracker:  records,
		Towers:   towers,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.String())
	for _, total := range result.TowerTotals {
		fmt.Fprintf(out, "  %-10s %-22s completed=%d closed=%d open/missing=%d\n",
			total.TowerKey, total.Category, total.CompletedCount, total.ClosedChecklistCount, total.OpenMissingCount)
	}
	for _, u := range result.Unmapped {
		fmt.Fprintf(out, "  unmapped %s label %q (%d)\n", u.Source, u.Label, u.Count)
	}

	if outputPath != "" {
		if err := report.NewExporter().ExportFile(outputPath, result); err != nil {
			return err
		}
		fmt.Fprintf(out, "exported to %s\n", outputPath)
	}

	if savePath != "" {
		if err := c.Store.SaveRun(ctx, result); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved run %s to %s\n", result.RunID, savePath)
	}
	return nil
}

func runVariants(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := container.NewContainer(cfg)
	if err != nil {
		return err
	}
	if err := c.Initialize(cmd.Context(), false); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, v := range c.Analyzer.Variants() {
		marker := " "
		if v.Name == cfg.ProjectVariant {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-12s %s\n", marker, v.Name, v.Description)
	}
	return nil
}
