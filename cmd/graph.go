package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/foomo/linkgraph-mcp/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type graphOptions struct {
	databaseID string
	format     string
}

func newCmdGraph() *cobra.Command {
	opts := graphOptions{}

	cmd := &cobra.Command{
		Use:     "graph",
		Aliases: []string{"g"},
		Short:   "Compute the link graph of a database once and print it",
		Long: heredoc.Doc(`
			Lists the pages of the database, fetches every page's content and prints
			each page with its links and backlinks followed by summary statistics.

			Pages whose content cannot be fetched appear with no links and are
			counted in failedPages.
		`),
		Example: heredoc.Doc(`
			linkgraph-mcp graph --database 0f1e2d3c4b5a69788796a5b4c3d2e1f0
			linkgraph-mcp graph -d 0f1e2d3c4b5a69788796a5b4c3d2e1f0 --connected-only -o yaml
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runGraph(ctx, cmd.OutOrStdout(), appCfg, opts, appCfg.newService(logger, nil))
		},
	}

	cmd.Flags().StringVarP(&opts.databaseID, "database", "d", "", "id of the Notion database")
	cmd.Flags().StringVarP(&opts.format, "format", "o", formatJSON, "output format: json or yaml")
	cmd.Flags().Bool("connected-only", false, "drop pages without links and backlinks")
	cobra.CheckErr(errors.Join(
		cmd.MarkFlagRequired("database"),
		viper.BindPFlag("graph.connected_only", cmd.Flags().Lookup("connected-only")),
	))
	return cmd
}

func runGraph(ctx context.Context, w io.Writer, cfg *Config, opts graphOptions, svc service.Service) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	graph, err := svc.ComputeLinkGraph(ctx, cfg.Credentials(), opts.databaseID, service.Options{
		ConnectedOnly: cfg.Graph.ConnectedOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to compute link graph: %w", err)
	}
	return writeOutput(w, opts.format, graph.Response())
}

type pagesOptions struct {
	databaseID string
	format     string
}

func newCmdPages() *cobra.Command {
	opts := pagesOptions{}

	cmd := &cobra.Command{
		Use:     "pages",
		Aliases: []string{"p"},
		Short:   "List the pages of a database with their titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPages(ctx, cmd.OutOrStdout(), appCfg, opts, appCfg.newService(logger, nil))
		},
	}

	cmd.Flags().StringVarP(&opts.databaseID, "database", "d", "", "id of the Notion database")
	cmd.Flags().StringVarP(&opts.format, "format", "o", formatJSON, "output format: json or yaml")
	cobra.CheckErr(cmd.MarkFlagRequired("database"))
	return cmd
}

func runPages(ctx context.Context, w io.Writer, cfg *Config, opts pagesOptions, svc service.Service) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	if cfg.Graph.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Graph.Timeout)
		defer cancel()
	}
	pages, err := svc.ListPages(ctx, cfg.Credentials(), opts.databaseID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	return writeOutput(w, opts.format, pages)
}
