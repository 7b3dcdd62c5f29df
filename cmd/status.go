package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"portico/internal/formatting"
	"portico/internal/session"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Long: `Shows the locally stored session: user, tenant, token expirations,
and permission count. This is a pure read; it does not contact the
gateway or refresh the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			sess, ok := a.store.Current()
			if !ok {
				fmt.Println(formatting.Notice("No active session. Run 'portico login' to sign in."))
				return nil
			}

			t := formatting.NewTable(os.Stdout)
			t.AppendHeader(formatting.Header("FIELD", "VALUE"))
			t.AppendRows([]table.Row{
				{"Authenticated", sess.IsAuthenticated},
				{"User", sess.User.Username},
				{"User id", sess.User.ID},
				{"Tenant", sess.Tenant},
				{"Permissions", len(sess.Perms)},
				{"Access token expires", formatExpiry(sess.TokenExpiration.AtExpires, sess.TokenExpiration.AtExpiresISO)},
				{"Refresh token expires", formatExpiry(sess.TokenExpiration.RtExpires, sess.TokenExpiration.RtExpiresISO)},
			})
			t.Render()
			return nil
		},
	}
}

func formatExpiry(millis int64, iso string) string {
	if millis == session.ExpiredAt {
		return formatting.Bad("expired (refresh pending)")
	}
	if iso == "" {
		return "unknown"
	}
	if time.UnixMilli(millis).Before(time.Now()) {
		return formatting.Bad(iso)
	}
	return formatting.Good(iso)
}
