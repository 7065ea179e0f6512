package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/calehh/pvote/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var queryUrl string

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List all proposals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printQuery(cmd, "/proposals/", nil)
	},
}

var proposalCmd = &cobra.Command{
	Use:   "proposal <id>",
	Short: "Show one proposal with its voters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid proposal id %q: %w", args[0], err)
		}
		return printQuery(cmd, "/proposal/", types.EncodeProposalID(id))
	},
}

var votedCmd = &cobra.Command{
	Use:   "voted <id> <address>",
	Short: "Check whether an address voted for a proposal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid proposal id %q: %w", args[0], err)
		}
		if !common.IsHexAddress(args[1]) {
			return fmt.Errorf("invalid address: %v", args[1])
		}
		voter := common.HexToAddress(args[1]).Hex()
		return printQuery(cmd, "/voted/", append(types.EncodeProposalID(id), voter...))
	},
}

type accountArguments struct {
	Url string
	Key string
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account [address]",
	Short: "Show the nonce of an account, defaults to the address of --key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := addressArg(args, accountArgs.Key)
		if err != nil {
			return err
		}
		cli, err := newClient(accountArgs.Url)
		if err != nil {
			return err
		}
		act, err := cli.account(context.Background(), address)
		if err != nil {
			return err
		}
		out, err := act.MarshalJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{proposalsCmd, proposalCmd, votedCmd} {
		urlFlag(c, &queryUrl)
	}
	urlFlag(accountCmd, &accountArgs.Url)
	keyFlag(accountCmd, &accountArgs.Key)
}

func printQuery(cmd *cobra.Command, path string, data []byte) error {
	cli, err := newClient(queryUrl)
	if err != nil {
		return err
	}
	dat, err := cli.query(context.Background(), path, data)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, dat, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return nil
}
