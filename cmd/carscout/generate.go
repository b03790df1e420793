package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/abdhe/carscout/pkg/carinfo"
	"github.com/abdhe/carscout/pkg/provider"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		addr       string
		structured bool
	)
	cmd := &cobra.Command{
		Use:   "generate <prompt...>",
		Short: "Send a raw prompt and print the first candidate's text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.RequestTimeout)
			defer cancel()

			b, err := a.open(ctx, addr)
			if err != nil {
				return err
			}
			defer b.Close()

			var cfg *provider.GenerationConfig
			if structured {
				cfg = &provider.GenerationConfig{ResponseMIMEType: provider.MIMETypeJSON}
			}
			return runGenerate(ctx, b.gen, strings.Join(args, " "), cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "use a running carscout server at host:port")
	cmd.Flags().BoolVar(&structured, "json", false, "request JSON output and validate it")
	return cmd
}

func runGenerate(ctx context.Context, gen carinfo.Generator, prompt string, cfg *provider.GenerationConfig, w io.Writer) error {
	res, err := gen.Generate(ctx, prompt, cfg)
	if err != nil {
		return errors.Wrap(err, "generate")
	}
	if res.Structured != nil {
		_, err = fmt.Fprintln(w, string(res.Structured))
	} else {
		_, err = fmt.Fprintln(w, res.Text)
	}
	return err
}
