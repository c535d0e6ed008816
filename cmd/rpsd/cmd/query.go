package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Cript/game-rps/internal/client"
	"github.com/Cript/game-rps/internal/rps"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Read sessions, events and nonces from a node",
	}
	cmd.PersistentFlags().String(flagNode, defaultNode, "CometBFT RPC endpoint")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "session <session-id>",
			Short: "Show one session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseHash(args[0], "session id")
				if err != nil {
					return err
				}
				return runQuery(cmd, "/session/"+id.Hex())
			},
		},
		&cobra.Command{
			Use:   "sessions",
			Short: "List session ids in creation order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runQuery(cmd, "/sessions")
			},
		},
		&cobra.Command{
			Use:   "events [from-seq]",
			Short: "Page through the notification log",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				from := uint64(1)
				if len(args) == 1 {
					n, err := strconv.ParseUint(args[0], 10, 64)
					if err != nil {
						return rps.ErrInvalidRequest.Wrapf("invalid sequence %q", args[0])
					}
					from = n
				}
				return runQuery(cmd, "/events/"+strconv.FormatUint(from, 10))
			},
		},
		&cobra.Command{
			Use:   "nonce <address>",
			Short: "Show the last accepted nonce of an address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !common.IsHexAddress(args[0]) {
					return rps.ErrInvalidRequest.Wrapf("invalid address %q", args[0])
				}
				return runQuery(cmd, "/nonce/"+common.HexToAddress(args[0]).Hex())
			},
		},
		&cobra.Command{
			Use:   "params",
			Short: "Show the registry parameters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runQuery(cmd, "/params")
			},
		},
	)
	return cmd
}

func runQuery(cmd *cobra.Command, path string) error {
	node, err := dialNode(cmd)
	if err != nil {
		return err
	}
	var out json.RawMessage
	if err := client.Query(cmd.Context(), node, path, &out); err != nil {
		return err
	}
	return printJSON(cmd, out)
}
