package main

import (
	"context"
	"fmt"

	"cloudsamples/internal/dlp"
	"cloudsamples/pkg/backoff"

	"github.com/spf13/cobra"
)

func dlpCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlp",
		Short: "Data Loss Prevention samples",
	}
	cmd.AddCommand(
		deidentifyTableCmd(a),
		redactImageCmd(a),
		kAnonymityCmd(a),
	)
	return cmd
}

func deidentifyTableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deidentify-table PROJECT [INPUT_CSV [OUTPUT_CSV]]",
		Short: "Replace person names in the PATIENT and FACTOID columns of a CSV table",
		Args:  rangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				client, err := a.clients.DLP(ctx, a.clientOptions()...)
				if err != nil {
					return dialError("dlp", err)
				}
				defer closeClient("dlp", client)

				res, err := dlp.NewService(client, a.metrics).DeidentifyTable(ctx, dlp.TableRequest{
					ProjectID:  args[0],
					InputPath:  optionalArg(args, 1),
					OutputPath: optionalArg(args, 2),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "After de-identify the table data (Output File Location): %s\n", res.OutputPath)
				return nil
			})
		},
	}
}

func redactImageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "redact-image PROJECT [IMAGE [OUTPUT]]",
		Short: "Redact all text found in an image",
		Args:  rangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				client, err := a.clients.DLP(ctx, a.clientOptions()...)
				if err != nil {
					return dialError("dlp", err)
				}
				defer closeClient("dlp", client)

				res, err := dlp.NewService(client, a.metrics).RedactImageAllText(ctx, dlp.ImageRequest{
					ProjectID:  args[0],
					InputPath:  optionalArg(args, 1),
					OutputPath: optionalArg(args, 2),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Redacted image saved to %s\n", res.OutputPath)
				return nil
			})
		},
	}
}

func kAnonymityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "k-anonymity CALLING_PROJECT DATA_PROJECT TOPIC SUBSCRIPTION DATASET TABLE QUASI_ID...",
		Short: "Compute the k-anonymity of a BigQuery table and wait for the result",
		Args:  minimumArgs(7),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				client, err := a.clients.DLP(ctx, a.clientOptions()...)
				if err != nil {
					return dialError("dlp", err)
				}
				defer closeClient("dlp", client)

				subscriber, err := a.clients.Subscriber(ctx, a.clientOptions()...)
				if err != nil {
					return dialError("pubsub", err)
				}
				defer closeClient("pubsub", subscriber)

				req := dlp.KAnonymityRequest{
					CallingProjectID: args[0],
					DataProjectID:    args[1],
					TopicID:          args[2],
					DatasetID:        args[4],
					TableID:          args[5],
					QuasiIDs:         args[6:],
				}
				waitCfg := a.cfg.DLP
				source := dlp.NewPubSubSource(subscriber, dlp.SubscriptionName(args[0], args[3]), waitCfg.PullMaxMessages, a.metrics)
				waiter := dlp.NewWaiter(client, source, dlp.WaitConfig{
					MaxWait: waitCfg.JobTimeout,
					Backoff: backoff.Config{
						Initial: waitCfg.BackoffInitial,
						Max:     waitCfg.BackoffMax,
					},
					RefetchInterval: waitCfg.RefetchInterval,
				}, a.metrics)

				result, err := dlp.NewService(client, a.metrics).KAnonymity(ctx, req, waiter)
				if err != nil {
					return err
				}
				return dlp.WriteKAnonymityReport(cmd.OutOrStdout(), result)
			})
		},
	}
}
