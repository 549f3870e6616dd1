package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"cloudsamples/internal/apperrors"
	"cloudsamples/internal/kms"

	"github.com/spf13/cobra"
)

func kmsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kms",
		Short: "Cloud KMS samples",
	}
	cmd.AddCommand(
		updateKeyRotationCmd(a),
		randomBytesCmd(a),
	)
	return cmd
}

func updateKeyRotationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update-key-rotation PROJECT LOCATION KEY_RING KEY",
		Short: "Rotate a crypto key every 30 days, starting tomorrow",
		Args:  exactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				client, err := a.clients.KMS(ctx, a.clientOptions()...)
				if err != nil {
					return dialError("kms", err)
				}
				defer closeClient("kms", client)

				key, err := kms.NewService(client, a.metrics).UpdateKeyAddRotation(ctx, kms.KeyRef{
					ProjectID: args[0],
					Location:  args[1],
					KeyRing:   args[2],
					Key:       args[3],
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated key: %s\n", key.GetName())
				return nil
			})
		},
	}
}

func randomBytesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "random-bytes PROJECT LOCATION NUM_BYTES",
		Short: "Generate random bytes with an HSM",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return apperrors.Validation("numBytes", fmt.Sprintf("not an integer: %q", args[2]))
			}
			return a.run(cmd, func(ctx context.Context) error {
				client, err := a.clients.KMS(ctx, a.clientOptions()...)
				if err != nil {
					return dialError("kms", err)
				}
				defer closeClient("kms", client)

				data, err := kms.NewService(client, a.metrics).GenerateRandomBytes(ctx, args[0], args[1], n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Random bytes: %s\n", base64.StdEncoding.EncodeToString(data))
				return nil
			})
		},
	}
}
