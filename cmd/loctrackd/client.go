package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"nuha.dev/loctrack/internal/bridge"
	"nuha.dev/loctrack/internal/config"
	"nuha.dev/loctrack/internal/util"
)

var channelToken string

func newClient() (*bridge.Client, error) {
	c, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	token := channelToken
	if token == "" {
		token = v.GetString("channel_token")
	}
	return bridge.NewClient(c.ChannelAddress, token), nil
}

func callCmd(use, short, method string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := newClient()
			if err != nil {
				return err
			}
			ok, err := cl.CallBool(context.Background(), method)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
	cmd.Flags().StringVar(&channelToken, "token", "", "channel token")
	return cmd
}

var (
	startCmd  = callCmd("start", "Start location tracking", bridge.START_LOCATION_SERVICE)
	stopCmd   = callCmd("stop", "Stop location tracking", bridge.STOP_LOCATION_SERVICE)
	statusCmd = callCmd("status", "Print whether tracking is intended to run", bridge.IS_SERVICE_RUNNING)
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Hash a channel token for channel_token_hash, generating one when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := util.GenRandomString(24)
		if len(args) == 1 {
			token = args[0]
		}
		hash, err := util.HashToken(token)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "token: %s\nhash:  %s\n", token, hash)
		return nil
	},
}
