package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/turbot/pipe-fittings/cmdconfig"
	"github.com/turbot/pipe-fittings/utils"
)

const (
	flagConfig        = "config"
	flagOutput        = "output"
	flagMetricsListen = "metrics-listen"

	defaultConfigPath = "~/.tailpipe/config/aws_s3_sqs.hcl"
	envPrefix         = "TAILPIPE_S3_SQS"
)

var exitCode int

// Build the cobra command that handles our command line tool.
func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tailpipe-s3-sqs COMMAND [args]",
		Short:         "Collect log lines from S3 objects as they are announced on an SQS queue",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	utils.LogTime("cmd.root.InitCmd start")
	defer utils.LogTime("cmd.root.InitCmd end")

	// flags may also be set with env vars, e.g. TAILPIPE_S3_SQS_METRICS_LISTEN
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cmdconfig.
		OnCmd(rootCmd)

	rootCmd.AddCommand(
		runCmd(),
		validateCmd(),
	)

	return rootCmd
}

func Execute() int {
	rootCmd := rootCommand()
	utils.LogTime("cmd.root.Execute start")
	defer utils.LogTime("cmd.root.Execute end")

	if err := rootCmd.Execute(); err != nil {
		exitCode = 1
	}
	return exitCode
}
