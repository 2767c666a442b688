package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stickfigures/internal/config"
	"stickfigures/internal/view"
)

var statusPassphrase string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the collection's mint count and max supply",
	Long: `Connects the configured wallet and reads the mint count and max supply once.
Keystore wallets need --passphrase (or STICKFIGURES_PASSPHRASE) to unlock an account.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, cfg.Chain.RPCTimeout)
		defer cancel()

		ch, err := dialChain(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer ch.Close()

		passphrase := statusPassphrase
		if passphrase == "" {
			passphrase = os.Getenv("STICKFIGURES_PASSPHRASE")
		}
		sess, err := ch.connector.CheckConnection(ctx)
		if err != nil {
			sess, err = ch.connector.Connect(ctx, passphrase)
		}
		if err != nil {
			return fmt.Errorf("connect wallet: %w", err)
		}
		if sess.Warning != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", sess.Warning)
		}
		ch.gateway.Attach(sess.Signer)

		count, err := ch.gateway.ReadMintCount(ctx)
		if err != nil {
			return err
		}
		maxSupply, err := ch.gateway.ReadMaxSupply(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "contract: %s\n", cfg.Contract().Hex())
		fmt.Fprintf(out, "account:  %s (chain %s)\n", sess.Account.Hex(), sess.ChainID)
		fmt.Fprintln(out, view.CounterText(view.Snapshot{MintCount: count, MaxSupply: maxSupply, CountsKnown: true}))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusPassphrase, "passphrase", "", "keystore passphrase")
}
