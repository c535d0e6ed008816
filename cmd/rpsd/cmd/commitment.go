package cmd

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Cript/game-rps/internal/rps"
)

const (
	flagChoice   = "choice"
	flagBlinding = "blinding"
)

func newCommitmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commitment <address>",
		Short: "Compute keccak256(address || choice || blinding) offline",
		Long: "Compute the commitment a player submits before revealing. When --blinding\n" +
			"is omitted a random one is drawn and printed; keep it to reveal later.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return rps.ErrInvalidRequest.Wrapf("invalid address %q", args[0])
			}
			choice, blinding, err := choiceAndBlinding(cmd, true)
			if err != nil {
				return err
			}
			return printJSON(cmd, opening{
				Address:        common.HexToAddress(args[0]),
				Choice:         choice,
				BlindingFactor: blinding,
				Commitment:     rps.ComputeCommitment(common.HexToAddress(args[0]), choice, blinding),
			})
		},
	}
	addChoiceFlags(cmd)
	return cmd
}

type opening struct {
	SessionID      *common.Hash   `json:"sessionId,omitempty"`
	Address        common.Address `json:"address"`
	Choice         rps.Choice     `json:"choice"`
	BlindingFactor common.Hash    `json:"blindingFactor"`
	Commitment     common.Hash    `json:"commitment"`
}

func addChoiceFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagChoice, "", "rock, paper or scissors")
	cmd.Flags().String(flagBlinding, "", "0x-prefixed 32-byte blinding factor (random when empty)")
	_ = cmd.MarkFlagRequired(flagChoice)
}

// choiceAndBlinding reads --choice and --blinding. A missing blinding factor
// is generated only when allowRandom is set.
func choiceAndBlinding(cmd *cobra.Command, allowRandom bool) (rps.Choice, common.Hash, error) {
	raw, err := cmd.Flags().GetString(flagChoice)
	if err != nil {
		return rps.ChoiceNone, common.Hash{}, err
	}
	choice, err := rps.ParseChoice(raw)
	if err != nil {
		return rps.ChoiceNone, common.Hash{}, err
	}
	hexBlinding, err := cmd.Flags().GetString(flagBlinding)
	if err != nil {
		return rps.ChoiceNone, common.Hash{}, err
	}
	if hexBlinding == "" {
		if !allowRandom {
			return rps.ChoiceNone, common.Hash{}, rps.ErrInvalidRequest.Wrap("--blinding is required")
		}
		b, err := rps.NewBlindingFactor(nil)
		return choice, b, err
	}
	b, err := parseHash(hexBlinding, "blinding factor")
	return choice, b, err
}

func parseHash(raw, what string) (common.Hash, error) {
	var h common.Hash
	if err := h.UnmarshalText([]byte(raw)); err != nil {
		return common.Hash{}, rps.ErrInvalidRequest.Wrapf("invalid %s %q", what, raw)
	}
	return h, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
