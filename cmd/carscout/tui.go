package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/abdhe/carscout/pkg/ui"
)

func newTUICmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive car lookup",
		Args:  cobra.NoArgs,
		// The program owns the terminal, so logs are dropped.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.quiet = true
			return a.load(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := a.open(ctx, addr)
			if err != nil {
				return err
			}
			defer b.Close()

			m := ui.New(ctx, b.lookup, ui.WithTimeout(a.cfg.Server.RequestTimeout))
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return errors.Wrap(err, "run tui")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "use a running carscout server at host:port")
	return cmd
}
