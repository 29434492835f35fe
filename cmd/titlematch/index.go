package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/engine"
	"github.com/gcbaptista/go-titlematch/internal/fixtures"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage collections of the local index",
	}
	cmd.AddCommand(newIndexBuildCommand(ctx))
	cmd.AddCommand(newIndexListCommand(ctx))
	cmd.AddCommand(newIndexDeleteCommand(ctx))
	return cmd
}

// openLocalEngine opens the local index, wired to the response cache when one is configured.
func openLocalEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, func() error, error) {
	localCfg := *cfg
	localCfg.Provider.Kind = config.ProviderKindLocal
	stack, err := newProviderStack(&localCfg, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	return stack.Engine, stack.Close, nil
}

func newIndexBuildCommand(ctx *commandContext) *cobra.Command {
	var idField string
	var fields []string

	cmd := &cobra.Command{
		Use:   "build <collection> <targets-file>",
		Short: "Build (or rebuild) a collection from a TSV/CSV file of target documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()

			docs, err := fixtures.ReadTargetsFile(args[1])
			if err != nil {
				return err
			}

			eng, closeStack, err := openLocalEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStack()

			settings := config.CollectionSettings{Name: args[0], IDField: idField, SearchableFields: fields}
			if settings.IDField == "" {
				settings.IDField = cfg.Provider.IDField
			}
			if len(settings.SearchableFields) == 0 {
				settings.SearchableFields = []string{cfg.Provider.FieldToQuery}
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			step := max(len(docs)/10, 1)
			err = eng.BuildCollection(signalCtx, settings, docs, func(done, total int) {
				if done == total || done%step == 0 {
					logger.Info("index progress", "collection", settings.Name, "done", done, "total", total)
				}
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "built collection '%s' with %d documents\n", settings.Name, len(docs))
			return nil
		},
	}

	cmd.Flags().StringVar(&idField, "id-field", "", "Field holding the document identifier (defaults to provider.id_field)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Searchable fields (defaults to provider.field_to_query)")
	return cmd
}

func newIndexListCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the collections of the local index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			eng, closeStack, err := openLocalEngine(cfg, ctx.log())
			if err != nil {
				return err
			}
			defer closeStack()

			type collectionView struct {
				Name             string   `json:"name"`
				IDField          string   `json:"id_field"`
				SearchableFields []string `json:"searchable_fields"`
				DocumentCount    int      `json:"document_count"`
			}
			views := []collectionView{}
			for _, name := range eng.ListCollections() {
				collection, err := eng.GetCollection(name)
				if err != nil {
					continue
				}
				settings := collection.Settings()
				views = append(views, collectionView{
					Name:             name,
					IDField:          settings.IDField,
					SearchableFields: settings.SearchableFields,
					DocumentCount:    collection.DocumentCount(),
				})
			}

			if format == "json" {
				return writeJSON(cmd, views)
			}
			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{view.Name, strconv.Itoa(view.DocumentCount), view.IDField, strings.Join(view.SearchableFields, ", ")})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Collection", "Documents", "ID field", "Searchable fields"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

func newIndexDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a collection of the local index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			eng, closeStack, err := openLocalEngine(cfg, ctx.log())
			if err != nil {
				return err
			}
			defer closeStack()

			if err := eng.DeleteCollection(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted collection '%s'\n", args[0])
			return nil
		},
	}
}
