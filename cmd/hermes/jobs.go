package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/hermes/config"
	"github.com/mohammad-safakhou/hermes/internal/scheduler"
	"github.com/mohammad-safakhou/hermes/internal/server"
)

func jobsCMD(cfgPath *string) *cobra.Command {
	var (
		serverURL string
		cancelID  string
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List or cancel deferred jobs on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = baseURL(cfg.Server.Address)
			}
			c := &jobsClient{base: strings.TrimRight(serverURL, "/"), http: &http.Client{Timeout: 10 * time.Second}}
			if cfg.Server.JWTSecret != "" {
				if c.token, err = server.SignJWT("hermes-cli", []byte(cfg.Server.JWTSecret), time.Minute); err != nil {
					return fmt.Errorf("sign token: %w", err)
				}
			}

			ctx := cmd.Context()
			if cancelID != "" {
				if err := c.cancel(ctx, cancelID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s cancelled\n", cancelID)
				return nil
			}
			jobs, err := c.list(ctx)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending jobs")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Trigger", "Run At"},
				jobRows(jobs),
				nil,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server base url (default derived from server.address)")
	cmd.Flags().StringVar(&cancelID, "cancel", "", "cancel the job with this id")
	return cmd
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func jobRows(jobs []scheduler.JobInfo) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{j.ID, j.Name, j.Trigger, j.RunAt.Local().Format("2006-01-02 15:04:05")})
	}
	return rows
}

type jobsClient struct {
	base  string
	token string
	http  *http.Client
}

func (c *jobsClient) do(ctx context.Context, method, path string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func (c *jobsClient) list(ctx context.Context) ([]scheduler.JobInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/jobs")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var jobs []scheduler.JobInfo
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	return jobs, nil
}

func (c *jobsClient) cancel(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/jobs/"+id)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var body server.HTTPError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
