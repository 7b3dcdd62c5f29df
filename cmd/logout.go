package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Long: `Ends the session at the gateway and clears all local session state.

Local cleanup always completes, even when the gateway cannot be reached;
other running portico processes observe the logout and clear their state
as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			if _, ok := a.store.Current(); !ok {
				fmt.Println("No active session.")
				return nil
			}

			if err := a.store.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}
