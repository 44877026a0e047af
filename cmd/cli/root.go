package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serverURL string
	userID    string
)

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

var rootCmd = &cobra.Command{
	Use:   "githawk-cli",
	Short: "githawk-cli is the command-line interface for Githawk.",
	Long:  `A CLI for managing the Githawk review service: connecting repositories, requesting pull request reviews and inspecting past results.`,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Githawk server base URL")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "acting user id")

	if err := viper.BindPFlag("SERVER_URL", rootCmd.PersistentFlags().Lookup("server")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("USER_ID", rootCmd.PersistentFlags().Lookup("user")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
}

// initConfig reads in ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("GITHAWK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if flag := rootCmd.PersistentFlags().Lookup("server"); !flag.Changed {
		if v := viper.GetString("SERVER_URL"); v != "" {
			serverURL = v
		}
	}
	if flag := rootCmd.PersistentFlags().Lookup("user"); !flag.Changed {
		if v := viper.GetString("USER_ID"); v != "" {
			userID = v
		}
	}
}
