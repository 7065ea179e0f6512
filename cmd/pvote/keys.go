package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/calehh/pvote/crypto"
	"github.com/spf13/cobra"
)

type keysArguments struct {
	Key       string
	Overwrite bool
}

var keysArgs keysArguments

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the account key used to sign transactions",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new account key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(keysArgs.Key); err == nil && !keysArgs.Overwrite {
			return fmt.Errorf("key file %s already exists", keysArgs.Key)
		}
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		if err := key.Save(keysArgs.Key); err != nil {
			return err
		}
		printKey(cmd, key)
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the public key and address of the account key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.LoadKeyFile(keysArgs.Key)
		if err != nil {
			return err
		}
		printKey(cmd, key)
		return nil
	},
}

var keysSignCmd = &cobra.Command{
	Use:   "sign <message>",
	Short: "Sign an arbitrary message with the account key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.LoadKeyFile(keysArgs.Key)
		if err != nil {
			return err
		}
		sig, err := key.Sign([]byte(args[0]))
		if err != nil {
			return fmt.Errorf("sign err: %w", err)
		}
		printKey(cmd, key)
		fmt.Fprintln(cmd.OutOrStdout(), "signature:", hex.EncodeToString(sig))
		return nil
	},
}

func init() {
	keysCmd.PersistentFlags().StringVarP(&keysArgs.Key, "key", "k", defaultKeyFile, "private key file")
	keysNewCmd.Flags().BoolVarP(&keysArgs.Overwrite, "overwrite", "o", false, "replace an existing key file")
	keysCmd.AddCommand(keysNewCmd, keysShowCmd, keysSignCmd)
}

func printKey(cmd *cobra.Command, key *crypto.Key) {
	fmt.Fprintln(cmd.OutOrStdout(), "pubkey:", hex.EncodeToString(key.PublicKey()))
	fmt.Fprintln(cmd.OutOrStdout(), "address:", key.Address())
}

// addressArg returns the address argument or the address of keyFile.
func addressArg(args []string, keyFile string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	key, err := crypto.LoadKeyFile(keyFile)
	if err != nil {
		return "", err
	}
	return key.Address(), nil
}
