package main

import "github.com/spf13/cobra"

const defaultKeyFile = "./pvote_key"

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "pvote node rpc url")
}

func keyFlag(cmd *cobra.Command, key *string) {
	cmd.Flags().StringVarP(key, "key", "k", defaultKeyFile, "private key file")
}
