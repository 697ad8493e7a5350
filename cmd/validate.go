package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/pdf"
	"github.com/brogergvhs/lectord/internal/util"
)

var flagExpectedPages int

func init() {
	validateCmd := &cobra.Command{
		Use:   "validate <pdf> [pdf...]",
		Short: "Check downloaded PDFs for truncation and missing pages",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
	validateCmd.Flags().IntVar(&flagExpectedPages, "expected-pages", 0, "expected page count (0 = unknown)")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	cfg, _, err := config.LoadMerged(flagConfigPath, config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
	})
	if err != nil {
		return err
	}

	limits := pdf.Limits{
		MinSizeBytes:       cfg.PDFMinSizeBytes,
		MinPageBytes:       cfg.PDFMinPageBytes,
		MinTotalForMulti:   cfg.PDFMinTotalForMulti,
		MultiPageThreshold: cfg.PDFMultiPageThreshold,
	}

	bad := 0
	for _, path := range args {
		report := pdf.Validate(path, flagExpectedPages, limits)
		if report.OK {
			fmt.Printf("OK    %s (%d pages, %s)\n", path, report.Pages, util.HumanBytes(report.Size))
		} else {
			fmt.Printf("BAD   %s (pages=%d, size=%s)\n", path, report.Pages, util.HumanBytes(report.Size))
			bad++
		}
	}

	if bad > 0 {
		fmt.Printf("%d of %d files failed validation.\n", bad, len(args))
		os.Exit(1)
	}

	return nil
}
