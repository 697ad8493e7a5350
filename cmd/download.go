package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/lectord/internal/blocklist"
	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/job"
	"github.com/brogergvhs/lectord/internal/ui"
	"github.com/brogergvhs/lectord/internal/util"
)

var (
	// selection
	flagURL   string
	flagTitle string
	flagSeq   string

	// runtime
	flagOutput   string
	flagJobs     int
	flagHeaded   bool
	flagHardFail bool

	// headers/auth
	flagUserAgent   string
	flagBlocklistDB string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download reader chapters and produce validated PDF files. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagURL, "url", "", "chapter page URL to start from")
	downloadCmd.Flags().StringVar(&flagTitle, "title", "", "series title for output filenames (derived from URL when empty)")
	downloadCmd.Flags().StringVar(&flagSeq, "seq", "", "chapter sequence: empty for one chapter, \"105 106.5\" for a list, \"+5\" or \"next: 5\" for a forward window")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder for PDF files")
	downloadCmd.Flags().IntVar(&flagJobs, "jobs", 1, "parallel download jobs when --seq lists chapters (max 2)")
	downloadCmd.Flags().BoolVar(&flagHeaded, "headed", false, "run the browser with a visible window")
	downloadCmd.Flags().BoolVar(&flagHardFail, "hard-fail", false, "fail a chapter when any page is missing instead of assembling a partial PDF")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	downloadCmd.Flags().StringVar(&flagBlocklistDB, "blocklist-db", "", "path to the blocklist database")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, usedPath, err := config.LoadMerged(flagConfigPath, config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		Output:       flagOutput,
		UserAgent:    flagUserAgent,
		BlocklistDB:  flagBlocklistDB,
		HardFail:     flagHardFail,
		Headed:       flagHeaded,
	})
	if err != nil {
		return err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}

	if cfg.Output == "" {
		cfg.Output = "."
	}
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	fmt.Println("Full config:")
	cfg.Print()
	fmt.Println()

	if flagURL == "" {
		return fmt.Errorf("missing --url")
	}

	seq := flagSeq
	if !cmd.Flags().Changed("seq") {
		prompt := promptui.Prompt{
			Label:   "Chapters (empty = this one, \"105 106\" = list, \"+5\" = next five)",
			Default: "",
		}
		if v, err := prompt.Run(); err == nil {
			seq = v
		}
	}

	mode, payload := job.ParseSequenceInput(seq, flagURL)

	ctx := context.Background()
	util.SetupInterruptHandler(cfg.Output)

	store := blocklist.Open(cfg.BlocklistDB)

	stats := &ui.Stats{}
	pm := ui.NewProgressManager()
	start := time.Now()

	var results []job.ChapterResult

	// A list of explicit tokens can fan out across jobs; each job carries
	// its own browser, so keep it at two like the site tolerates.
	if mode == job.ModeList && flagJobs > 1 && len(payload) > 1 {
		jobs := flagJobs
		if jobs > 2 {
			jobs = 2
		}

		var mu sync.Mutex
		var wg sync.WaitGroup
		sem := make(chan struct{}, jobs)

		for _, token := range payload {
			token := token
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				runner := job.NewRunner(cfg, logSvc, store, stats)
				runner.SetProgress(pm)
				res, err := runner.Run(ctx, job.Request{
					StartURL: flagURL,
					Title:    flagTitle,
					OutDir:   cfg.Output,
					Mode:     job.ModeList,
					Payload:  []string{token},
				})
				if err != nil {
					logSvc.Errorf("Chapter %s: %s\n", token, err.Error())
					return
				}
				mu.Lock()
				results = append(results, res...)
				mu.Unlock()
			}()
		}
		wg.Wait()
	} else {
		runner := job.NewRunner(cfg, logSvc, store, stats)
		runner.SetProgress(pm)
		results, err = runner.Run(ctx, job.Request{
			StartURL: flagURL,
			Title:    flagTitle,
			OutDir:   cfg.Output,
			Mode:     mode,
			Payload:  payload,
		})
		if err != nil {
			return err
		}
	}

	pm.Close()
	util.CleanupScratchDirs(cfg.Output)

	printSummary(results, stats, time.Since(start))

	for _, res := range results {
		if !res.Success {
			os.Exit(1)
		}
	}

	return nil
}

func printSummary(results []job.ChapterResult, stats *ui.Stats, elapsed time.Duration) {
	fmt.Println()
	for _, res := range results {
		if res.Success {
			fmt.Printf("  Ch%-8s OK    %s (%d pages, %s)\n",
				res.Chapter, res.PDFPath, res.Pages, util.HumanBytes(res.SizeBytes))
		} else {
			msg := res.Message
			if msg == "" {
				msg = "failed"
			}
			fmt.Printf("  Ch%-8s FAIL  %s\n", res.Chapter, msg)
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 46))
	fmt.Printf("Chapters: %d   Pages: %d   Size: %s   Elapsed: %s\n",
		stats.TotalChapters.Load(),
		stats.TotalPages.Load(),
		util.HumanBytes(stats.TotalBytes.Load()),
		elapsed.Round(time.Second))
	fmt.Println(strings.Repeat("=", 46))
}
