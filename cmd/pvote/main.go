package main

import (
	"fmt"
	"os"
)

func main() {
	pvoteCmd.AddCommand(initCmd)
	pvoteCmd.AddCommand(versionCmd)
	pvoteCmd.AddCommand(keysCmd)
	pvoteCmd.AddCommand(accountCmd)
	pvoteCmd.AddCommand(createCmd)
	pvoteCmd.AddCommand(voteCmd)
	pvoteCmd.AddCommand(proposalsCmd)
	pvoteCmd.AddCommand(proposalCmd)
	pvoteCmd.AddCommand(votedCmd)
	if err := pvoteCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
