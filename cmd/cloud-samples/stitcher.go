package main

import (
	"context"
	"fmt"

	"cloudsamples/internal/stitcher"

	"github.com/spf13/cobra"
)

func stitcherCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stitcher",
		Short: "Video Stitcher samples",
	}
	cmd.AddCommand(
		createLiveConfigCmd(a),
		deleteCdnKeyCmd(a),
	)
	return cmd
}

func createLiveConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-live-config PROJECT LOCATION LIVE_CONFIG_ID SOURCE_URI AD_TAG_URI SLATE_ID",
		Short: "Create a live config with server-side ad tracking",
		Args:  exactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				client, err := a.clients.Stitcher(ctx, a.clientOptions()...)
				if err != nil {
					return dialError("stitcher", err)
				}
				defer closeClient("stitcher", client)

				cfg, err := stitcher.NewService(client, a.metrics).CreateLiveConfig(ctx, stitcher.LiveConfigRequest{
					ProjectID:    args[0],
					Location:     args[1],
					LiveConfigID: args[2],
					SourceURI:    args[3],
					AdTagURI:     args[4],
					SlateID:      args[5],
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Live config: %s\n", cfg.GetName())
				return nil
			})
		},
	}
}

func deleteCdnKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-cdn-key PROJECT LOCATION CDN_KEY_ID",
		Short: "Delete a CDN key",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				client, err := a.clients.Stitcher(ctx, a.clientOptions()...)
				if err != nil {
					return dialError("stitcher", err)
				}
				defer closeClient("stitcher", client)

				if err := stitcher.NewService(client, a.metrics).DeleteCdnKey(ctx, args[0], args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted CDN key %s\n", args[2])
				return nil
			})
		},
	}
}
