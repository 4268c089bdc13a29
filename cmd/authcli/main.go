// Command authcli is a small end-to-end exercise of the auth client library:
// log in, inspect the session, issue authorized requests, log out. Sessions
// persist between invocations through the configured store.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/authorizer"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/issuer"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, session.UserMessage(err))
		fmt.Fprintf(os.Stderr, "detail: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	sessionStore, err := newStore(cfg)
	if err != nil {
		return err
	}

	issuerClient := issuer.NewClient(cfg.IssuerURL, issuer.WithTimeout(cfg.RequestTimeout))
	manager, err := session.NewManager(issuerClient, sessionStore,
		session.WithRefreshMargin(cfg.RefreshMargin),
		session.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	if len(args) == 0 {
		usage(cfg.AppName)
		return nil
	}

	// Best-effort auto-login; commands that need a session report it below.
	if _, err := manager.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("stored session could not be restored")
	}

	switch args[0] {
	case "login":
		if len(args) != 3 {
			return fmt.Errorf("usage: authcli login <email> <password>")
		}
		sess, err := manager.Login(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s (token valid until %s)\n", sess.Email, sess.AccessTokenExpiry.Format(time.RFC3339))

	case "signup":
		if len(args) != 3 {
			return fmt.Errorf("usage: authcli signup <email> <password>")
		}
		sess, err := manager.Signup(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("signed up as %s (token valid until %s)\n", sess.Email, sess.AccessTokenExpiry.Format(time.RFC3339))

	case "logout":
		manager.Logout()
		fmt.Println("logged out")

	case "whoami":
		sess := manager.Current()
		if sess == nil {
			fmt.Println("not logged in")
			return nil
		}
		fmt.Printf("%s (user %s, token valid until %s)\n", sess.Email, sess.UserID, sess.AccessTokenExpiry.Format(time.RFC3339))

	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: authcli get <url>")
		}
		return get(ctx, manager, cfg, logger, args[1])

	default:
		usage(cfg.AppName)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

// get issues one authorized request through the request authorizer and writes
// the response body to stdout.
func get(ctx context.Context, manager *session.Manager, cfg config.Config, logger zerolog.Logger, url string) error {
	metrics := authorizer.NewMetrics(prometheus.NewRegistry())
	client := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: authorizer.New(manager,
			authorizer.WithIssuerBase(cfg.IssuerURL),
			authorizer.WithLogger(logger),
			authorizer.WithMetrics(metrics),
		),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func newStore(cfg config.Config) (session.Store, error) {
	if cfg.RedisURL != "" {
		options, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTH_REDIS_URL: %w", err)
		}
		return store.NewRedis(redis.NewClient(options)), nil
	}

	key, err := cfg.SecretKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		return store.NewFile(cfg.SessionFile, store.WithSecret(*key)), nil
	}
	return store.NewFile(cfg.SessionFile), nil
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(parsed).With().Timestamp().Logger()
}

func usage(appName string) {
	myFigure := figure.NewFigure(appName, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  login <email> <password>   authenticate and store the session")
	fmt.Println("  signup <email> <password>  register a new account")
	fmt.Println("  logout                     clear the stored session")
	fmt.Println("  whoami                     show the current session")
	fmt.Println("  get <url>                  issue an authorized GET request")
}
