package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Cript/game-rps/internal/client"
	"github.com/Cript/game-rps/internal/rps"
)

const defaultNode = "http://127.0.0.1:26657"

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign and broadcast session transactions",
	}
	cmd.PersistentFlags().String(flagNode, defaultNode, "CometBFT RPC endpoint")
	cmd.PersistentFlags().String(flagFrom, "", "name of the signing key under <home>/keys")
	_ = cmd.MarkPersistentFlagRequired(flagFrom)

	create := &cobra.Command{
		Use:   "create",
		Short: "Open a join session with your commitment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			choice, blinding, err := choiceAndBlinding(cmd, true)
			if err != nil {
				return err
			}
			commitment := rps.ComputeCommitment(c.Address(), choice, blinding)
			id, err := c.CreateSession(cmd.Context(), commitment)
			if err != nil {
				return err
			}
			return printJSON(cmd, opening{
				SessionID:      &id,
				Address:        c.Address(),
				Choice:         choice,
				BlindingFactor: blinding,
				Commitment:     commitment,
			})
		},
	}
	addChoiceFlags(create)

	createRoster := &cobra.Command{
		Use:   "create-roster <address>...",
		Short: "Open a session with a fixed member list",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			members := make([]common.Address, 0, len(args))
			for _, a := range args {
				if !common.IsHexAddress(a) {
					return rps.ErrInvalidRequest.Wrapf("invalid address %q", a)
				}
				members = append(members, common.HexToAddress(a))
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			id, err := c.CreateRoster(cmd.Context(), members)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"sessionId": id, "members": members})
		},
	}

	cmd.AddCommand(
		create,
		createRoster,
		commitTxCmd("join <session-id>", "Join a session with your commitment", (*client.Client).Join),
		commitTxCmd("commit <session-id>", "Submit your commitment to a roster session", (*client.Client).Commit),
		newRevealCmd(),
	)
	return cmd
}

type commitFunc func(c *client.Client, ctx context.Context, id, commitment common.Hash) (*client.Result, error)

func commitTxCmd(use, short string, submit commitFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHash(args[0], "session id")
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			choice, blinding, err := choiceAndBlinding(cmd, true)
			if err != nil {
				return err
			}
			commitment := rps.ComputeCommitment(c.Address(), choice, blinding)
			if _, err := submit(c, cmd.Context(), id, commitment); err != nil {
				return err
			}
			return printJSON(cmd, opening{
				SessionID:      &id,
				Address:        c.Address(),
				Choice:         choice,
				BlindingFactor: blinding,
				Commitment:     commitment,
			})
		},
	}
	addChoiceFlags(cmd)
	return cmd
}

func newRevealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reveal <session-id>",
		Short: "Open your commitment once every slot has committed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHash(args[0], "session id")
			if err != nil {
				return err
			}
			choice, blinding, err := choiceAndBlinding(cmd, false)
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Reveal(cmd.Context(), id, choice, blinding)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"sessionId": id, "choice": choice, "height": res.Height, "hash": res.Hash})
		},
	}
	addChoiceFlags(cmd)
	return cmd
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	from, err := cmd.Flags().GetString(flagFrom)
	if err != nil {
		return nil, err
	}
	key, err := loadKey(cmd, from)
	if err != nil {
		return nil, err
	}
	node, err := dialNode(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(node, key), nil
}

func dialNode(cmd *cobra.Command) (client.Node, error) {
	remote, err := cmd.Flags().GetString(flagNode)
	if err != nil {
		return nil, err
	}
	if remote == "" {
		return nil, fmt.Errorf("--%s is required", flagNode)
	}
	return client.Dial(remote)
}
