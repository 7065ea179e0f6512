package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/calehh/pvote/tx"
	"github.com/spf13/cobra"
)

func txFlags(cmd *cobra.Command, args *txArguments) {
	urlFlag(cmd, &args.Url)
	keyFlag(cmd, &args.Key)
	cmd.Flags().Int64VarP(&args.Nonce, "nonce", "n", -1, "account nonce, queried from the node when negative")
	cmd.Flags().BoolVarP(&args.NoSend, "nosend", "", false, "print the signed transaction instead of sending it")
	cmd.Flags().BoolVarP(&args.Commit, "commit", "", false, "wait until the transaction is committed")
}

type createArguments struct {
	txArguments
	Description string
	Quorum      uint64
}

var createArgs createArguments

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		btx := tx.NewCreateProposalTx(0, args[0], createArgs.Description, createArgs.Quorum)
		return sendTx(cmd, &createArgs.txArguments, btx)
	},
}

var voteArgs txArguments

var voteCmd = &cobra.Command{
	Use:   "vote <proposal-id>",
	Short: "Vote for a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid proposal id %q: %w", args[0], err)
		}
		return sendTx(cmd, &voteArgs, tx.NewVoteTx(0, id))
	},
}

func init() {
	txFlags(createCmd, &createArgs.txArguments)
	createCmd.Flags().StringVarP(&createArgs.Description, "description", "", "", "proposal description")
	createCmd.Flags().Uint64VarP(&createArgs.Quorum, "quorum", "q", 1, "votes needed to accept the proposal")
	txFlags(voteCmd, &voteArgs)
}

func sendTx(cmd *cobra.Command, args *txArguments, btx *tx.Tx) error {
	ctx := context.Background()
	cli, err := newClient(args.Url)
	if err != nil {
		return err
	}
	if _, err := cli.signTx(ctx, args, btx); err != nil {
		return err
	}
	dat, err := tx.MarshalTx(btx)
	if err != nil {
		return err
	}
	if args.NoSend {
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(dat))
		return nil
	}
	res, err := cli.broadcast(ctx, args, dat)
	if err != nil {
		return err
	}
	out, err := json.Marshal(res)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
