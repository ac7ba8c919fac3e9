package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/turbot/pipe-fittings/cmdconfig"
	"github.com/turbot/tailpipe-source-aws-s3-sqs/config"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [flags]",
		Short: "Check the config file without connecting to AWS",
		Args:  cobra.NoArgs,
		RunE:  runValidateCmd,
	}

	cmdconfig.OnCmd(cmd).
		AddStringFlag(flagConfig, defaultConfigPath, "Path to the config file")

	return cmd
}

func runValidateCmd(cmd *cobra.Command, _ []string) error {
	path := viper.GetString(flagConfig)
	if _, err := config.Load(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
	return nil
}
