package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type adminClient struct {
	base string
}

func newBackupCommand(a *app) *cobra.Command {
	var admin string
	client := func() (*adminClient, error) {
		base := admin
		if base == "" {
			base = a.cfg.AdminAddr
		}
		if base == "" {
			return nil, fmt.Errorf("no admin listener: pass --admin or set admin_addr")
		}
		if !strings.Contains(base, "://") {
			if strings.HasPrefix(base, ":") {
				base = "127.0.0.1" + base
			}
			base = "http://" + base
		}
		return &adminClient{base: strings.TrimRight(base, "/")}, nil
	}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage database backups through the running server's admin listener",
	}
	cmd.PersistentFlags().StringVar(&admin, "admin", "", "admin listener address; defaults to admin_addr")

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Copy the live database into the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			return c.call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/admin/backups", "", nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			return c.call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, "/admin/backups", "", nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <filename>",
		Short: "Replace the live database with a named backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			body, _ := json.Marshal(map[string]string{"filename": args[0]})
			return c.call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/admin/backups/restore", "application/json", body)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the live database with a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return c.call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/admin/backups/import", "application/vnd.sqlite3", data)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Download a snapshot of the live database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			var snapshot bytes.Buffer
			if err := c.call(cmd.Context(), &snapshot, http.MethodGet, "/admin/backups/export", "", nil); err != nil {
				return err
			}
			if err := os.WriteFile(args[0], snapshot.Bytes(), 0o600); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"file": args[0], "bytes": snapshot.Len()})
		},
	})
	return cmd
}

// call copies the response body to out. Statuses of 400 and above are
// returned as errors carrying the body.
func (c *adminClient) call(ctx context.Context, out io.Writer, method, path, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
