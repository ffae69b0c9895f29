package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contactdesk/cmd/contactdesk/ui"
	"contactdesk/internal/controller"
)

// runInteractive starts the terminal interface.
func runInteractive(cmd *cobra.Command, args []string) error {
	bridge := ui.NewBridge()
	defer bridge.Close()

	a := openApp(controller.WithConfirmer(bridge), controller.WithNotifier(bridge))
	defer a.Close()
	stop := bridge.Watch(a.sess)
	defer stop()

	theme := cfg.UI.Theme
	if pref := a.files.Theme(); pref != "" {
		theme = pref
	}

	ctx, cancel := commandContext()
	defer cancel()

	model := ui.New(ui.Options{
		Controller: a.ctl,
		Bridge:     bridge,
		Theme:      theme,
		ShowOwner:  cfg.UI.ShowOwner,
		ExportDir:  ".",
		Context:    ctx,
		OnTheme: func(name string) {
			if err := a.files.SetTheme(name); err != nil {
				logger.Warn("theme not saved", zap.Error(err))
			}
		},
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("interactive session failed: %w", err)
	}
	return nil
}
