package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/abdhe/carscout/pkg/carinfo"
	"github.com/abdhe/carscout/pkg/ui"
)

type askOptions struct {
	addr    string
	jsonOut bool
}

func newAskCmd(a *app) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run a single lookup and print the answer",
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "", "use a running carscout server at host:port instead of calling Gemini directly")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")

	sub := func(use, short string, run func(ctx context.Context, l carinfo.Lookup, car string, w io.Writer, jsonOut bool) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <car...>",
			Short: short,
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.RequestTimeout)
				defer cancel()

				b, err := a.open(ctx, opts.addr)
				if err != nil {
					return err
				}
				defer b.Close()

				car := strings.Join(args, " ")
				if err := run(ctx, b.lookup, car, cmd.OutOrStdout(), opts.jsonOut); err != nil {
					a.logger.Error("lookup failed", "command", use, "car", car, "error", err)
					return err
				}
				return nil
			},
		}
	}

	cmd.AddCommand(
		sub("ratings", "Ratings from multiple sources", printRatings),
		sub("description", "Short description of the car", printDescription),
		sub("pros-cons", "Strengths and weaknesses", printProsCons),
		sub("overview", "Ratings, then description and pros/cons", printOverview),
	)
	return cmd
}

func printRatings(ctx context.Context, l carinfo.Lookup, car string, w io.Writer, jsonOut bool) error {
	r, err := l.Ratings(ctx, car)
	if err != nil {
		return errors.Wrapf(err, "ratings for %q", car)
	}
	if jsonOut {
		return writeJSON(w, r)
	}
	_, err = fmt.Fprint(w, ui.RenderRatings(r))
	return err
}

func printDescription(ctx context.Context, l carinfo.Lookup, car string, w io.Writer, jsonOut bool) error {
	d, err := l.Description(ctx, car)
	if err != nil {
		return errors.Wrapf(err, "description for %q", car)
	}
	if jsonOut {
		return writeJSON(w, map[string]string{"description": d})
	}
	_, err = fmt.Fprintln(w, d)
	return err
}

func printProsCons(ctx context.Context, l carinfo.Lookup, car string, w io.Writer, jsonOut bool) error {
	pc, err := l.ProsAndCons(ctx, car)
	if err != nil {
		return errors.Wrapf(err, "pros and cons for %q", car)
	}
	if jsonOut {
		return writeJSON(w, pc)
	}
	_, err = fmt.Fprint(w, ui.RenderProsCons(pc))
	return err
}

func printOverview(ctx context.Context, l carinfo.Lookup, car string, w io.Writer, jsonOut bool) error {
	o, err := carinfo.FetchOverview(ctx, l, car)
	if err != nil {
		return errors.Wrapf(err, "overview for %q", car)
	}
	if jsonOut {
		return writeJSON(w, o)
	}
	_, err = fmt.Fprint(w, ui.RenderRatings(o.Ratings)+"\n"+o.Description+"\n"+ui.RenderProsCons(o.ProsCons))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode output")
}
