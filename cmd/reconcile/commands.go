package main

import (
	"github.com/spf13/cobra"

	"progressreport/internal/config"
)

var (
	qaDir       string
	trackerPath string
	towerName   string
	towerList   []string
	variantName string
	rulesFile   string
	workerCount int
	chunkSize   int
	outputPath  string
	savePath    string
	logLevel    string

	rootCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile QA checklist closures against the progress tracker",
		Long: `reconcile compares closed checklists from the QA system export with
completed activities from the project tracker and reports the open or
missing checklists per tower and activity.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.SetupLogger(logLevel)
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation and print its summary",
		Args:  cobra.NoArgs,
		RunE:  runReconcile, // cmd_run.go
	}

	variantsCmd = &cobra.Command{
		Use:   "variants",
		Short: "List project variants of the rule set",
		Args:  cobra.NoArgs,
		RunE:  runVariants, // cmd_run.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "YAML rule set (embedded defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "DEBUG, INFO, WARN or ERROR")

	runCmd.Flags().StringVar(&qaDir, "qa-dir", "", "directory with locations.json, activity_statuses.json and activities.json")
	runCmd.Flags().StringVar(&trackerPath, "tracker", "", "tracker workbook (.xlsx) or one tower sheet (.csv)")
	runCmd.Flags().StringVar(&towerName, "tower", "", "tower of the CSV tracker sheet")
	runCmd.Flags().StringSliceVar(&towerList, "towers", nil, "towers reported even without data")
	runCmd.Flags().StringVar(&variantName, "variant", "", "project variant (PROJECT_VARIANT when empty)")
	runCmd.Flags().IntVar(&workerCount, "workers", 0, "worker pool size (WORKER_COUNT when zero)")
	runCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "QA records per chunk (CHUNK_SIZE when zero)")
	runCmd.Flags().StringVarP(&outputPath, "out", "o", "", "export file, format taken from extension (.xlsx, .csv, .json)")
	runCmd.Flags().StringVar(&savePath, "save", "", "SQLite database to store the run in")
	_ = runCmd.MarkFlagRequired("qa-dir")
	_ = runCmd.MarkFlagRequired("tracker")

	rootCmd.AddCommand(runCmd, variantsCmd)
}
