package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/fixtures"
	"github.com/gcbaptista/go-titlematch/internal/matcher"
	"github.com/gcbaptista/go-titlematch/internal/scoring"
	"github.com/gcbaptista/go-titlematch/model"
)

type matchOptions struct {
	originsFile   string
	title         string
	collection    string
	originDataset string
	preset        string
	queryType     string
	size          int
	concurrency   int
	format        string
	save          bool
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	opts := &matchOptions{}

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the confident matches of origin titles in a target collection",
		Long: `Match a single title (--title) or a TSV/CSV file of origin documents (--origins)
against a target collection and print how many leading candidates are confident matches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.originsFile, "origins", "", "TSV or CSV file of origin id/title rows")
	flags.StringVar(&opts.title, "title", "", "Match a single title instead of a file")
	flags.StringVar(&opts.collection, "collection", "", "Target collection (index) name")
	flags.StringVar(&opts.originDataset, "origin-dataset", "", "Name of the origin dataset (defaults to the file name)")
	flags.StringVar(&opts.preset, "preset", "", "Threshold preset: strict or loose (defaults to the configuration)")
	flags.StringVar(&opts.queryType, "query-type", "", "Query type: common, match or match_phrase")
	flags.IntVar(&opts.size, "size", 0, "Maximum candidates per origin")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "Origins matched in parallel")
	flags.StringVar(&opts.format, "format", "table", "Output format: table or json")
	flags.BoolVar(&opts.save, "save", false, "Persist the batch result in the result store")
	_ = cmd.MarkFlagRequired("collection")
	cmd.MarkFlagsMutuallyExclusive("origins", "title")
	cmd.MarkFlagsOneRequired("origins", "title")

	return cmd
}

func runMatch(cmd *cobra.Command, ctx *commandContext, opts *matchOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger := ctx.log()

	switch opts.format {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q (use table or json)", opts.format)
	}

	settings, providerSettings, err := resolveMatchSettings(cfg, opts)
	if err != nil {
		return err
	}
	scorer, err := scoring.NewScorer(settings, scoring.WithLogger(logger))
	if err != nil {
		return err
	}

	stack, err := newProviderStack(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if opts.title != "" {
		origin := model.NewOriginDocument("cli", opts.title, opts.originDataset)
		dm := matcher.NewDocMatch(origin, opts.collection, stack.Provider, scorer, providerSettings)
		return printDocMatch(signalCtx, cmd, dm, opts.format)
	}

	entries, err := fixtures.ReadOriginsFile(opts.originsFile)
	if err != nil {
		return err
	}
	originDataset := opts.originDataset
	if originDataset == "" {
		originDataset = strings.TrimSuffix(filepath.Base(opts.originsFile), filepath.Ext(opts.originsFile))
	}

	collectionMatcher, err := matcher.NewCollectionMatcherFromEntries(entries, originDataset, opts.collection,
		stack.Provider, scorer,
		matcher.WithConcurrency(settings.Concurrency),
		matcher.WithDuplicatePolicy(settings.DuplicatePolicy),
		matcher.WithProviderSettings(providerSettings),
		matcher.WithLogger(logger),
		matcher.WithProgress(progressLogger(logger)))
	if err != nil {
		return err
	}

	result, matchErr := collectionMatcher.GetAllConfidentMatches(signalCtx)
	if result == nil {
		return matchErr
	}

	var runID string
	if opts.save && matchErr == nil {
		runID, err = saveResult(cmd.Context(), cfg, result, settings, providerSettings)
		if err != nil {
			return err
		}
	}

	if opts.format == "json" {
		if err := writeJSON(cmd, result); err != nil {
			return err
		}
	} else {
		printCollectionResult(cmd, result)
	}
	if stats := stack.CacheStats(); stats != nil {
		logger.Info("response cache", "hits", stats.Hits, "misses", stats.Misses)
	}
	if runID != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "saved run %s\n", runID)
	}
	return matchErr
}

// resolveMatchSettings applies the preset and flag overrides to the configuration.
func resolveMatchSettings(cfg *config.Config, opts *matchOptions) (config.MatchSettings, config.ProviderSettings, error) {
	settings := cfg.Match
	if opts.preset != "" {
		preset, ok := config.PresetMatchSettings(opts.preset)
		if !ok {
			return settings, cfg.Provider, fmt.Errorf("unknown preset %q (use strict or loose)", opts.preset)
		}
		preset.Concurrency = settings.Concurrency
		preset.DuplicatePolicy = settings.DuplicatePolicy
		settings = preset
	}
	if opts.concurrency > 0 {
		settings.Concurrency = opts.concurrency
	}

	providerSettings := cfg.Provider
	if opts.queryType != "" {
		providerSettings.QueryType = opts.queryType
	}
	if opts.size > 0 {
		providerSettings.Size = opts.size
	}
	if problems := providerSettings.Validate(); len(problems) > 0 {
		return settings, providerSettings, errors.New(strings.Join(problems, "; "))
	}
	return settings, providerSettings, nil
}

func saveResult(ctx context.Context, cfg *config.Config, result *model.CollectionResult, settings config.MatchSettings, providerSettings config.ProviderSettings) (string, error) {
	store, err := openResultStore(cfg)
	if err != nil {
		return "", err
	}
	if store == nil {
		return "", errNoResultStore
	}
	defer store.Close()

	settingsJSON, err := json.Marshal(map[string]any{"match": settings, "provider": providerSettings})
	if err != nil {
		return "", err
	}
	return store.SaveRun(ctx, result, string(settingsJSON))
}

func printCollectionResult(cmd *cobra.Command, result *model.CollectionResult) {
	rows := make([][]string, 0, len(result.Matches)+len(result.Failures))
	for _, originID := range result.OriginIDs() {
		if message, failed := result.Failures[originID]; failed {
			rows = append(rows, []string{originID, "-", "", "failed: " + message})
			continue
		}
		ids := result.Matches[originID]
		status := "matched"
		if len(ids) == 0 {
			status = "no match"
		}
		rows = append(rows, []string{originID, strconv.Itoa(len(ids)), strings.Join(ids, ", "), status})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Origin", "Matches", "Target IDs", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintf(cmd.OutOrStdout(), "%d origins, %d matched, %d failed (%s -> %s)\n",
		len(rows), result.MatchedCount(), len(result.Failures), result.OriginDataset, result.TargetCollection)
}

type docMatchOutput struct {
	Origin     model.OriginDocument `json:"origin"`
	Count      int                  `json:"count"`
	Matches    []string             `json:"matches"`
	StopReason scoring.StopReason   `json:"stop_reason"`
	Candidates []*model.Candidate   `json:"candidates"`
}

func printDocMatch(ctx context.Context, cmd *cobra.Command, dm *matcher.DocMatch, format string) error {
	ids, err := dm.ConfidentMatchIDs(ctx)
	if err != nil {
		return err
	}
	outcome, _ := dm.Outcome()
	candidates := dm.Candidates()

	if format == "json" {
		return writeJSON(cmd, docMatchOutput{
			Origin:     dm.Origin(),
			Count:      len(ids),
			Matches:    ids,
			StopReason: outcome.Reason,
			Candidates: candidates,
		})
	}

	rows := make([][]string, 0, len(candidates))
	for i, candidate := range candidates {
		fuzz := "-"
		if ratio, ok := candidate.FuzzRatio(); ok {
			fuzz = strconv.FormatFloat(ratio, 'f', 1, 64)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			candidate.ID,
			strconv.FormatFloat(candidate.Score, 'f', 3, 64),
			fuzz,
			yesNo(i < len(ids)),
			candidate.Title,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Rank", "ID", "Score", "Fuzz", "Confident", "Title"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintf(cmd.OutOrStdout(), "%d confident matches in '%s' (stopped: %s)\n", len(ids), dm.TargetCollection(), outcome.Reason)
	return nil
}

// progressLogger logs batch progress roughly every tenth of the batch.
func progressLogger(logger *slog.Logger) matcher.ProgressFunc {
	return func(done, total int) {
		step := max(total/10, 1)
		if done == total || done%step == 0 {
			logger.Info("match progress", "done", done, "total", total)
		}
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
