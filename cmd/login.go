package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"portico/internal/assets"
	"portico/internal/bootstrap"
	"portico/internal/config"
	"portico/internal/idp"
	"portico/internal/tenant"
)

var (
	loginTenant    string
	loginNoBrowser bool
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the identity provider",
		Long: `Sign in by opening the identity provider's authorization page in a
browser and waiting for the redirect on a temporary local server.

On success the session is created, the tenant's modules are resolved,
and the HTML shell is written to the output directory.

Examples:
  portico login                  # use the configured tenant
  portico login --tenant diku    # pick a tenant explicitly
  portico login --no-browser     # print the URL instead of opening it`,
		RunE: runLogin,
	}
	cmd.Flags().StringVar(&loginTenant, "tenant", "", "tenant to sign in to (defaults to the single configured tenant)")
	cmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp()
	if err != nil {
		return err
	}

	identity := loginIdentity(a.cfg)
	if identity.IsZero() {
		return fmt.Errorf("pick a tenant with --tenant (configured: %d): %w", len(a.cfg.Tenants), bootstrap.ErrNoTenant)
	}

	server := idp.NewCallbackServer(a.cfg.CallbackPort, a.cfg.CallbackPath)
	callbackBase, err := server.Start(ctx)
	if err != nil {
		return err
	}
	defer server.Stop()

	if err := a.store.RememberTenant(identity); err != nil {
		return err
	}
	authorizeURL := a.store.AuthorizeURL(identity, callbackBase)

	if loginNoBrowser {
		fmt.Printf("Open this URL to sign in:\n\n  %s\n\n", authorizeURL)
	} else if err := idp.OpenBrowser(authorizeURL); err != nil {
		fmt.Printf("Could not open a browser (%v). Open this URL to sign in:\n\n  %s\n\n", err, authorizeURL)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for sign-in in the browser..."
	s.Start()

	waitCtx, cancel := context.WithTimeout(ctx, idp.CallbackTimeout)
	defer cancel()
	callbackURL, err := server.WaitForCallback(waitCtx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("sign-in did not complete: %w", err)
	}

	outcome, err := a.init.Run(ctx, callbackURL)
	if err != nil {
		return err
	}

	s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Completing session setup..."
	s.Start()
	result, err := outcome.Task.Wait(ctx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("session setup failed: %w", err)
	}

	shellPath, err := assets.WriteShell(a.cfg.OutputDir, result.HostAssets, result.Resolution.Remotes)
	if err != nil {
		return err
	}

	fmt.Printf("Signed in as %s@%s\n", result.Session.User.Username, result.Session.Tenant)
	fmt.Printf("Resolved %d remote modules, shell written to %s\n", len(result.Resolution.Remotes), shellPath)
	return nil
}

// loginIdentity picks the tenant for an interactive login: the --tenant
// flag wins, then the single configured entry.
func loginIdentity(cfg config.PlatformConfig) tenant.Identity {
	if loginTenant != "" {
		return tenant.Identity{Name: loginTenant, ClientID: cfg.ClientIDFor(loginTenant)}
	}
	return tenant.Resolve("", cfg.Tenants)
}
