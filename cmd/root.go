package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/foomo/linkgraph-mcp/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string

	appCfg *Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "linkgraph-mcp",
	Short:   "Link graph of a Notion database, served over MCP.",
	Version: mcp.Version,
	Long: heredoc.Doc(`
		Computes, for every page of a Notion database, the pages it links to and
		the pages linking back to it.

		The token is read from --token, LINKGRAPH_NOTION_TOKEN or NOTION_TOKEN.

		  linkgraph-mcp serve                       # MCP over stdio
		  linkgraph-mcp serve --http :8080          # MCP over streamable HTTP and SSE
		  linkgraph-mcp graph --database <id> --format yaml
	`),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		l, err := newLogger(cfg.Log.Mode)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		appCfg, logger = cfg, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml)")
	flags.String("token", "", "Notion integration token")
	flags.String("log-mode", "dev", "log mode: dev or prod")
	flags.Int("concurrency", 8, "maximum simultaneous page content fetches")
	flags.Duration("timeout", 60*time.Second, "deadline for a whole graph computation")

	setDefaults(viper.GetViper())
	cobra.CheckErr(bindEnv(viper.GetViper()))
	cobra.CheckErr(errors.Join(
		viper.BindPFlag("notion.token", flags.Lookup("token")),
		viper.BindPFlag("log.mode", flags.Lookup("log-mode")),
		viper.BindPFlag("graph.concurrency", flags.Lookup("concurrency")),
		viper.BindPFlag("graph.timeout", flags.Lookup("timeout")),
	))

	rootCmd.AddCommand(newCmdServe())
	rootCmd.AddCommand(newCmdGraph())
	rootCmd.AddCommand(newCmdPages())
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to read config:", err)
		os.Exit(1)
	}
}
