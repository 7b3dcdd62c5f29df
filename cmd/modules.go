package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"portico/internal/formatting"
	"portico/internal/registry"
	"portico/internal/session"
	pstrings "portico/pkg/strings"
)

var modulesRefresh bool

func newModulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Show the reconciled module manifest",
		Long: `Shows the remote modules from the last entitlement/discovery
resolution, read from the local cache. With --refresh the resolution is
re-run against the gateway first, which requires an active session.`,
		RunE: runModules,
	}
	cmd.Flags().BoolVar(&modulesRefresh, "refresh", false, "re-run the resolution before showing it")
	return cmd
}

func runModules(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	var resolution *registry.Resolution
	if modulesRefresh {
		sess, ok := a.store.Current()
		if !ok || !sess.Valid() {
			return fmt.Errorf("refresh requires a session, run 'portico login': %w", session.ErrSessionInvalid)
		}
		resolution, err = a.resolver.Resolve(cmd.Context(), sess.Tenant, sess.Token)
		if err != nil {
			return err
		}
	} else {
		var ok bool
		resolution, ok = a.resolver.Cached()
		if !ok {
			fmt.Println(formatting.Notice("No cached resolution. Run 'portico bootstrap' or 'portico modules --refresh'."))
			return nil
		}
	}

	fmt.Printf("Source: %s\n", resolution.SourceURL)
	fmt.Printf("Host:   %s\n\n", resolution.HostLocation)

	t := formatting.NewTable(os.Stdout)
	t.AppendHeader(formatting.Header("ID", "NAME", "APPLICATION", "LOCATION"))
	for _, m := range resolution.Remotes {
		t.AppendRow(table.Row{
			m.ID,
			m.Name,
			m.ApplicationID,
			pstrings.TruncateMiddle(m.Location, pstrings.DefaultCellMaxLen),
		})
	}
	t.Render()
	return nil
}
