package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/jrife/kvmux/multiplex"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/spf13/cobra"
)

func newGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMultiplexer(cmd.Context(), opts, func(mux *multiplex.Multiplexer) error {
				value, err := mux.Get(cmd.Context(), args[0])

				if err != nil {
					return notFound(cmd.OutOrStdout(), err)
				}

				printKV(cmd.OutOrStdout(), args[0], value)

				return nil
			})
		},
	}
}

func newPutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Write a value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMultiplexer(cmd.Context(), opts, func(mux *multiplex.Multiplexer) error {
				return mux.Put(cmd.Context(), args[0], []byte(args[1]))
			})
		},
	}
}

func newPostCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "post VALUE",
		Short: "Write a value under a new key and print the key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMultiplexer(cmd.Context(), opts, func(mux *multiplex.Multiplexer) error {
				key, err := mux.Post(cmd.Context(), []byte(args[0]))

				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), key)

				return nil
			})
		},
	}
}

func newDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "del KEY",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMultiplexer(cmd.Context(), opts, func(mux *multiplex.Multiplexer) error {
				return mux.Delete(cmd.Context(), args[0])
			})
		},
	}
}

func newScanCommand(opts *options) *cobra.Command {
	var prefix, start, end string
	var limit int
	var reverse bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Print the keys and values in a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyRange := keys.All()

			if prefix != "" {
				keyRange = keyRange.Prefix([]byte(prefix))
			}

			if start != "" {
				keyRange = keyRange.Gte([]byte(start))
			}

			if end != "" {
				keyRange = keyRange.Lt([]byte(end))
			}

			order := kv.SortOrderAsc

			if reverse {
				order = kv.SortOrderDesc
			}

			return withMultiplexer(cmd.Context(), opts, func(mux *multiplex.Multiplexer) error {
				iter, err := mux.Iterate(cmd.Context(), multiplex.IterateOptions{Range: keyRange, Order: order, Limit: limit})

				if err != nil {
					return err
				}

				defer iter.Close()

				for iter.Next() {
					printKV(cmd.OutOrStdout(), iter.Key(), iter.Value())
				}

				return iter.Error()
			})
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only keys with this prefix")
	cmd.Flags().StringVar(&start, "start", "", "only keys >= start")
	cmd.Flags().StringVar(&end, "end", "", "only keys < end")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of keys, 0 means no limit")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "iterate in descending order")

	return cmd
}

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print logical changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return withMultiplexer(ctx, opts, func(mux *multiplex.Multiplexer) error {
				changes, err := mux.Changes(ctx)

				if err != nil {
					return err
				}

				defer changes.Close()

				for changes.Next() {
					change := changes.Value().(kv.Change)
					ops := make([]string, len(change.Ops))

					for i, op := range change.Ops {
						ops[i] = fmt.Sprintf("%s\t%s\t%s", op.Type, op.Key, op.Value)
					}

					fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ops, "\n"))
				}

				if err := changes.Error(); err != nil && err != context.Canceled {
					return err
				}

				return nil
			})
		},
	}
}
