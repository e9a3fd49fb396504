package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/chatstream/internal/codeblock"
	"github.com/capitalize-ai/chatstream/internal/config"
	"github.com/capitalize-ai/chatstream/pkg/logger"
)

type rootOptions struct {
	cfg      *config.Config
	out      string
	style    string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{cfg: config.Load()}

	cmd := &cobra.Command{
		Use:   "chatctl",
		Short: "Stream chat responses and render them to HTML",
		Long: `chatctl talks to the chat backend (or an LLM provider directly) and
renders streamed markdown the same way the chat page does.

Examples:
  chatctl ask "write a python hello world" --out answer.html
  chatctl ask "show a bash loop" --copy-block 0
  chatctl render notes.md --chunk 7`,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfg.BackendURL, "backend-url", opts.cfg.BackendURL, "Chat backend base URL")
	flags.StringVar(&opts.cfg.Producer, "producer", opts.cfg.Producer, "Response source: backend, openai or anthropic")
	flags.StringVar(&opts.cfg.SelectedModel, "model", opts.cfg.SelectedModel, "Model to stream from")
	flags.StringVar(&opts.cfg.SystemMessage, "system", opts.cfg.SystemMessage, "System message")
	flags.StringVar(&opts.cfg.Username, "username", opts.cfg.Username, "Username saved with the chat")
	flags.StringSliceVar(&opts.cfg.Sinks, "sinks", opts.cfg.Sinks, "Where to save the chat: http, nats, sqlite")
	flags.StringVarP(&opts.out, "out", "o", "", "Write the HTML document to this file instead of stdout")
	flags.StringVar(&opts.style, "style", codeblock.DefaultStyle, "Chroma style for code blocks")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	cmd.AddCommand(newAskCmd(opts), newRenderCmd(opts))
	return cmd
}

func (o *rootOptions) logger() *logger.Logger {
	log, err := logger.New(o.logLevel)
	if err != nil {
		return logger.NewNop()
	}
	return log
}

// writeDocument wraps body in a standalone page carrying the code styles.
func (o *rootOptions) writeDocument(stdout io.Writer, body string) error {
	css, err := codeblock.StyleSheet(o.style)
	if err != nil {
		return err
	}

	w := stdout
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	_, err = fmt.Fprintf(w, documentTemplate, css, body)
	return err
}

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
%s
.hidden { display: none; }
</style>
</head>
<body>
%s
</body>
</html>
`
