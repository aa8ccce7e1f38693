package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	opacus "github.com/Opacus-xyz/Opacus"
	"github.com/Opacus-xyz/Opacus/crypto"
)

// initClient builds a connected client, restoring the identity from
// OPACUS_ED_PRIV/OPACUS_X_PRIV when both are set.
func initClient(ctx context.Context, relay string) (*opacus.OpacusClient, error) {
	cfg := opacus.DefaultConfig(opacus.NetworkTestnet)
	cfg.RelayURL = relayURL(relay)

	client := opacus.NewClient(cfg)

	edHex, xHex := os.Getenv("OPACUS_ED_PRIV"), os.Getenv("OPACUS_X_PRIV")
	if edHex != "" && xHex != "" {
		edPriv, err := crypto.ParseKeyHex(edHex)
		if err != nil {
			return nil, fmt.Errorf("OPACUS_ED_PRIV: %w", err)
		}
		xPriv, err := crypto.ParseKeyHex(xHex)
		if err != nil {
			return nil, fmt.Errorf("OPACUS_X_PRIV: %w", err)
		}
		if _, err := client.InitFromKeys(edPriv, xPriv); err != nil {
			return nil, err
		}
	} else if _, err := client.Init(); err != nil {
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	// The first Ack delivers the relay's key-exchange public key.
	ackCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Recv(ackCtx); err != nil {
		return nil, fmt.Errorf("await relay ack: %w", err)
	}
	return client, nil
}

func newIdentityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Generate a new agent identity and print its keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := crypto.GenerateIdentity(opacus.NetworkTestnet.ChainID())
			if err != nil {
				return err
			}
			edPriv, xPriv := identity.ExportKeys()
			fmt.Printf("agent id:  %s\n", identity.ID)
			fmt.Printf("address:   %s\n", identity.Address)
			fmt.Printf("ed priv:   %s\n", edPriv)
			fmt.Printf("x priv:    %s\n", xPriv)
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	var relay, to string

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a message to another agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := initClient(ctx, relay)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect() }()

			if err := client.SendMessage(to, []byte(args[0])); err != nil {
				return err
			}
			logrus.WithField("to", to).Info("Message sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&relay, "relay", "", "relay URL (default from OPACUS_RELAY_URL)")
	cmd.Flags().StringVar(&to, "to", "", "recipient agent ID")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newStreamCmd() *cobra.Command {
	var relay, channel string

	cmd := &cobra.Command{
		Use:   "stream <data>",
		Short: "Broadcast data on a stream channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := initClient(ctx, relay)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect() }()

			if channel == "" {
				channel = uuid.NewString()
			}
			if err := client.SendStream(channel, []byte(args[0])); err != nil {
				return err
			}
			logrus.WithField("channel_id", channel).Info("Stream data sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&relay, "relay", "", "relay URL (default from OPACUS_RELAY_URL)")
	cmd.Flags().StringVar(&channel, "channel", "", "channel ID (random when omitted)")
	return cmd
}
