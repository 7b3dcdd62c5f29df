package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"portico/internal/assets"
	"portico/internal/bootstrap"
	"portico/internal/registry"
	"portico/internal/session"
	"portico/internal/storage"
	"portico/pkg/logging"
)

var (
	bootstrapURL   string
	bootstrapWatch bool
)

func newBootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Validate the session, resolve modules, and write the shell",
		Long: `Runs the full bootstrap pipeline: validates the stored session against
the gateway, reconciles entitlements with module discovery, loads the
host application's build manifest, and writes the HTML shell to the
output directory.

Without a valid session the command prints the sign-in URL and exits
with the authentication-required code. With --watch it stays running
after a successful bootstrap and clears local state when another
process signs out.`,
		RunE: runBootstrap,
	}
	cmd.Flags().StringVar(&bootstrapURL, "url", "http://localhost/", "current location to bootstrap from (callback URLs are exchanged)")
	cmd.Flags().BoolVar(&bootstrapWatch, "watch", false, "keep running and react to logout from other processes")
	return cmd
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp()
	if err != nil {
		return err
	}

	outcome, err := a.init.Run(ctx, bootstrapURL)
	if err != nil {
		return err
	}

	switch outcome.Action {
	case bootstrap.ActionRedirect:
		fmt.Printf("Authentication required. Sign in at:\n\n  %s\n\nor run 'portico login'.\n", outcome.RedirectURL)
		return fmt.Errorf("no valid session for tenant %s: %w", outcome.Identity.Name, session.ErrSessionInvalid)

	case bootstrap.ActionExchange:
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Completing session setup..."
		s.Start()
		result, err := outcome.Task.Wait(ctx)
		s.Stop()
		if err != nil {
			return fmt.Errorf("session setup failed: %w", err)
		}
		return finishBootstrap(ctx, a, result.Session, result.Resolution, result.HostAssets)

	default:
		return finishBootstrap(ctx, a, outcome.Session, outcome.Resolution, outcome.HostAssets)
	}
}

func finishBootstrap(ctx context.Context, a *app, sess *session.Session, resolution *registry.Resolution, hostAssets *assets.AssetSet) error {
	shellPath, err := assets.WriteShell(a.cfg.OutputDir, hostAssets, resolution.Remotes)
	if err != nil {
		return err
	}

	fmt.Printf("Session valid for %s@%s\n", sess.User.Username, sess.Tenant)
	fmt.Printf("Resolved %d remote modules, shell written to %s\n", len(resolution.Remotes), shellPath)

	if !bootstrapWatch {
		return nil
	}
	return watchLogout(ctx, a)
}

// watchLogout blocks until another process removes the session sentinel,
// then clears local state.
func watchLogout(ctx context.Context, a *app) error {
	broadcast, err := storage.WatchLogout(a.adapter)
	if err != nil {
		return err
	}
	defer broadcast.Close()

	fmt.Println("Watching for logout (ctrl-c to stop)...")
	select {
	case _, ok := <-broadcast.C():
		if !ok {
			return nil
		}
		logging.Info("Bootstrap", "Logout observed from another process")
		a.store.ClearLocal()
		fmt.Println("Signed out elsewhere, local session cleared.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
