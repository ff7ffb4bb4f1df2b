package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"vpms_console/internal/app"
	"vpms_console/internal/config"
	"vpms_console/internal/domain"
	"vpms_console/internal/fakeapi"
	"vpms_console/internal/gateway"
	"vpms_console/internal/logger"
)

func main() {
	cfg := config.Load()
	l, err := logger.Init(cfg.Development())
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cli.Command{
		Name:  "vpms-console",
		Usage: "operator console for the vehicle parking management API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "ephemeral", Usage: "keep the session in memory instead of the session database"},
		},
		Commands: []*cli.Command{
			serveCommand(cfg, l),
			loginCommand(cfg, l),
			logoutCommand(cfg, l),
			whoamiCommand(cfg, l),
			slotsCommand(cfg, l),
			demoAPICommand(l),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, cfg, cmd.Bool("ephemeral"), l)
		},
	}
	if err := root.Run(ctx, os.Args); err != nil {
		l.Error("command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, ephemeral bool, l *zap.Logger) error {
	console, err := app.Open(ctx, cfg, ephemeral, l)
	if err != nil {
		return err
	}
	defer console.Close()
	return console.Serve(ctx)
}

func serveCommand(cfg *config.Config, l *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the console and its local HTTP surface",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Value: cfg.ServerPort, Usage: "local HTTP port"},
			&cli.StringFlag{Name: "api", Value: cfg.APIBaseURL, Usage: "parking API base URL"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.ServerPort = c.String("port")
			cfg.APIBaseURL = c.String("api")
			return serve(ctx, cfg, c.Root().Bool("ephemeral"), l)
		},
	}
}

func loginCommand(cfg *config.Config, l *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and persist the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			console, err := app.Open(ctx, cfg, false, l)
			if err != nil {
				return err
			}
			defer console.Close()
			s, err := console.Services.Auth.Login(ctx, domain.LoginDTO{
				Email:    c.String("email"),
				Password: c.String("password"),
			})
			if err != nil {
				return errors.New(gateway.Message(err, "Login failed. Please check your credentials."))
			}
			fmt.Printf("Signed in as %s (%s)\n", s.User.Name, s.User.Role)
			return nil
		},
	}
}

func logoutCommand(cfg *config.Config, l *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the persisted session",
		Action: func(ctx context.Context, c *cli.Command) error {
			console, err := app.Open(ctx, cfg, false, l)
			if err != nil {
				return err
			}
			defer console.Close()
			return console.Services.Auth.Logout(ctx)
		},
	}
}

func whoamiCommand(cfg *config.Config, l *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the persisted session",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			console, err := app.Open(ctx, cfg, false, l)
			if err != nil {
				return err
			}
			defer console.Close()
			s := console.Session.Current()
			if !s.Authenticated() {
				return errors.New("not signed in")
			}
			if c.Bool("json") {
				return printJSON(s.User)
			}
			fmt.Printf("%s <%s> %s\n", s.User.Name, s.User.Email, s.User.Role)
			return nil
		},
	}
}

func slotsCommand(cfg *config.Config, l *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "print every slot with its live status",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			console, err := app.Open(ctx, cfg, false, l)
			if err != nil {
				return err
			}
			defer console.Close()
			if !console.Session.Authenticated() {
				return errors.New("not signed in")
			}

			slots, err := console.Cache.Slots(ctx)
			if err != nil {
				return err
			}
			// customers cannot list everyone's bookings; the flag alone decides then
			reservations, err := console.Cache.Reservations(ctx)
			if err != nil && !gateway.IsStatus(err, http.StatusForbidden) {
				return err
			}
			logs, err := console.Cache.Logs(ctx)
			if err != nil && !gateway.IsStatus(err, http.StatusForbidden) {
				return err
			}

			resolved := domain.ResolveAll(slots, reservations, logs)
			if c.Bool("json") {
				return printJSON(resolved)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLOCATION\tTYPE\tSTATUS")
			for _, s := range resolved {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.SlotID, s.Location, s.Type, s.Status)
			}
			sum := domain.SummarizeSlots(resolved)
			fmt.Fprintf(w, "\n%d total, %d available\n", sum.Total, sum.Available)
			return w.Flush()
		},
	}
}

func demoAPICommand(l *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "demo-api",
		Usage: "serve an in-memory parking API for local runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8090", Usage: "listen address"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			srv := &http.Server{Addr: c.String("addr"), Handler: fakeapi.New().Handler()}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			l.Info("demo API listening",
				zap.String("addr", srv.Addr),
				zap.String("admin", fakeapi.AdminEmail),
				zap.String("staff", fakeapi.StaffEmail),
				zap.String("customer", fakeapi.CustomerEmail))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
