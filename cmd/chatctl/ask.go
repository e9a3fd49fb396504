package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatstream/internal/app"
	"github.com/capitalize-ai/chatstream/internal/chat"
	"github.com/capitalize-ai/chatstream/internal/stream"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var copyBlock int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and write the rendered answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			log := opts.logger()
			defer log.Sync()

			a, err := app.New(ctx, opts.cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			session := chat.NewSession(a.ChatConfig(), a.Deps())
			defer session.Close()

			out, err := session.Submit(ctx, strings.Join(args, " "), func(u stream.Update) {
				if u.State == stream.Streaming {
					fmt.Fprint(cmd.ErrOrStderr(), ".")
				}
			})
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			log.Info("answer received",
				zap.String("state", out.State.String()),
				zap.Int("chunks", out.Chunks),
				zap.Duration("duration", out.Duration),
			)

			if err := opts.writeDocument(cmd.OutOrStdout(), session.HTML()); err != nil {
				return err
			}

			if copyBlock >= 0 {
				if err := session.CopyCodeBlock(copyBlock); err != nil {
					return fmt.Errorf("copy code block: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "copied code block %d to the clipboard\n", copyBlock)
			}

			if out.State == stream.Errored {
				return errors.New(stream.ErrorPrefix + out.Err.Error())
			}
			if out.State == stream.Cancelled && ctx.Err() != nil {
				return context.Canceled
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&copyBlock, "copy-block", -1, "Copy code block N (0-based) of the answer to the clipboard")
	return cmd
}
