package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"claudebridge/internal/config"
	"claudebridge/internal/server"
)

// Overridden at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "claudebridge",
	Short: "Anthropic Messages proxy for OpenAI-compatible upstreams",
	Long: "claudebridge accepts Anthropic Messages API requests and forwards them\n" +
		"to an OpenAI-compatible upstream (OpenAI, Gemini) or relays them to\n" +
		"Anthropic directly, translating request bodies, responses and SSE\n" +
		"streams in both directions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("claudebridge %s (built %s)\n", Version, BuildTime)
	},
}

func runServe() error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logrus.SetLevel(cfg.ParseLogLevel())
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return server.New(cfg).Run()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to an env file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
