package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	BinaryName = "rpsd"

	flagHome = "home"
	flagNode = "node"
	flagFrom = "from"
)

// NewRootCmd creates the rpsd command tree. It is called once in main.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           BinaryName,
		Short:         "Commit-reveal rock-paper-scissors ABCI application",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.PersistentFlags().String(flagHome, ".rpsd", "application home directory")
	_ = v.BindPFlag(flagHome, rootCmd.PersistentFlags().Lookup(flagHome))

	rootCmd.AddCommand(
		newStartCmd(v),
		newCommitmentCmd(),
		newKeysCmd(),
		newTxCmd(),
		newQueryCmd(),
	)
	return rootCmd
}
