package cmd

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage secp256k1 signing keys under <home>/keys",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "new <name>",
			Short: "Generate a key and print its address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := keyPath(cmd, args[0])
				if err != nil {
					return err
				}
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("key %q already exists", args[0])
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				key, err := crypto.GenerateKey()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
					return err
				}
				if err := crypto.SaveECDSA(path, key); err != nil {
					return fmt.Errorf("save key: %w", err)
				}
				return printJSON(cmd, map[string]string{
					"name":    args[0],
					"address": crypto.PubkeyToAddress(key.PublicKey).Hex(),
				})
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print the address of a stored key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := loadKey(cmd, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{
					"name":    args[0],
					"address": crypto.PubkeyToAddress(key.PublicKey).Hex(),
				})
			},
		},
	)
	return cmd
}

func keyPath(cmd *cobra.Command, name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid key name %q", name)
	}
	home, err := cmd.Flags().GetString(flagHome)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "keys", name+".key"), nil
}

func loadKey(cmd *cobra.Command, name string) (*ecdsa.PrivateKey, error) {
	path, err := keyPath(cmd, name)
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("load key %q: %w", name, err)
	}
	return key, nil
}
