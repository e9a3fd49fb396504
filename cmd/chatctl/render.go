package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/chatstream/internal/markup"
	"github.com/capitalize-ai/chatstream/internal/stream"
)

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var chunk int

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a markdown file or stdin as if it were streamed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunk <= 0 {
				return fmt.Errorf("--chunk must be positive, got %d", chunk)
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			log := opts.logger()
			defer log.Sync()

			view := stream.NewView()
			var cancel stream.Cancel
			out := stream.Run(cmd.Context(), in, view, &cancel, stream.Options{
				ReadSize: chunk,
				Model:    "local",
				Logger:   log,
			})
			if out.State == stream.Errored {
				return out.Err
			}

			return opts.writeDocument(cmd.OutOrStdout(), markup.Render(view.Root))
		},
	}

	cmd.Flags().IntVar(&chunk, "chunk", stream.DefaultReadSize, "Bytes per read")
	return cmd
}
