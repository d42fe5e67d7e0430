// Command adminctl talks to the API the way the browser app does: it keeps
// the session cookies in a credentials file and refreshes them when the
// server reports an expired session.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/client"
	"github.com/danielolaru91/AuthSystem/internal/logging"
)

func main() {
	_ = godotenv.Load()

	home, _ := os.UserConfigDir()
	cmd := &cli.Command{
		Name:  "adminctl",
		Usage: "Command line client for the administration API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api", Value: "http://localhost:8080", Usage: "API base URL", Sources: cli.EnvVars("ADMINCTL_API")},
			&cli.StringFlag{Name: "credentials", Value: filepath.Join(home, "authsystem", "session.json"), Usage: "Where session cookies are kept", Sources: cli.EnvVars("ADMINCTL_CREDENTIALS")},
			&cli.BoolFlag{Name: "force-logout", Usage: "Drop the session instead of refreshing when it expires"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log client activity"},
		},
		Commands: []*cli.Command{
			{
				Name:      "login",
				Usage:     "Sign in and store the session",
				ArgsUsage: "<email> <password>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return cli.Exit("usage: adminctl login <email> <password>", 2)
					}
					id, err := controller(cmd).Login(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
					if err != nil {
						return err
					}
					fmt.Printf("signed in as %s (%s)\n", id.Email, id.Role)
					return nil
				},
			},
			{
				Name:  "restore",
				Usage: "Resume the stored session, refreshing it if needed",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c := controller(cmd)
					st, err := c.Restore(ctx)
					if err != nil {
						return err
					}
					fmt.Println(st)
					if id, ok := c.Identity(); ok {
						fmt.Printf("%s (%s)\n", id.Email, id.Role)
					}
					return nil
				},
			},
			{
				Name:  "me",
				Usage: "Show the signed in account",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := controller(cmd).Me(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%d %s %s\n", id.UserID, id.Email, id.Role)
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "End the session",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return controller(cmd).Logout(ctx)
				},
			},
			{
				Name:      "get",
				Usage:     "GET an API path with the stored session",
				ArgsUsage: "<path>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return cli.Exit("usage: adminctl get /api/users", 2)
					}
					if !strings.HasPrefix(path, "/") {
						path = "/" + path
					}
					req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(cmd.String("api"), "/")+path, nil)
					if err != nil {
						return err
					}
					resp, err := controller(cmd).Do(ctx, req)
					if err != nil {
						return err
					}
					defer resp.Body.Close()
					if resp.StatusCode >= 300 {
						fmt.Fprintln(os.Stderr, resp.Status)
					}
					_, err = io.Copy(os.Stdout, resp.Body)
					return err
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func controller(cmd *cli.Command) *client.Controller {
	logger := zap.NewNop()
	if cmd.Bool("verbose") {
		if l, err := logging.New("dev"); err == nil {
			logger = l
		}
	}
	policy := client.RetryOnce
	if cmd.Bool("force-logout") {
		policy = client.ForceLogout
	}
	return client.New(cmd.String("api"),
		client.WithStore(client.NewFileStore(cmd.String("credentials"))),
		client.WithPolicy(policy),
		client.WithLogger(logger),
		client.OnSessionExpired(func(_ context.Context, ev client.ExpiredEvent) {
			logger.Info("session expired", zap.String("method", ev.Method), zap.String("url", ev.URL))
		}),
	)
}
