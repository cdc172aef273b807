package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"catalog-lens/internal/bootstrap"
	"catalog-lens/internal/config"
	"catalog-lens/internal/entity"
	"catalog-lens/internal/pkg/logger"
	"catalog-lens/internal/repository/contract"
	"catalog-lens/internal/repository/implementation"
	"catalog-lens/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// sessionEnv is the pair of stores the CLI works with: the kiosk's durable
// store and a cookie jar seeded from a browser's Cookie header.
type sessionEnv struct {
	cfg      *config.Config
	resolver *service.CredentialResolver
	jar      http.CookieJar
	origin   *url.URL
	close    func() error
}

func openSession(cookieHeader string) (*sessionEnv, error) {
	cfg := config.Load()
	log := logger.NewNop()

	durable, closeStore := bootstrap.NewDurableStore(cfg, log)
	origin, err := url.Parse("http://localhost:" + cfg.App.Port)
	if err != nil {
		return nil, err
	}
	jar, err := seedJar(origin, cookieHeader)
	if err != nil {
		closeStore()
		return nil, err
	}

	var cookies contract.CredentialStore = implementation.NewCookieStore(implementation.NewJarCookies(jar, origin), cfg.Credential.CookieSecure)
	return &sessionEnv{
		cfg:      cfg,
		resolver: service.NewCredentialResolver(log, durable, cookies),
		jar:      jar,
		origin:   origin,
		close:    closeStore,
	}, nil
}

// seedJar loads a raw "name=value; name2=value2" header into a fresh jar.
func seedJar(origin *url.URL, header string) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if header == "" {
		return jar, nil
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return nil, fmt.Errorf("parse cookie header: %w", err)
	}
	for _, c := range cookies {
		c.Path = "/"
	}
	jar.SetCookies(origin, cookies)
	return jar, nil
}

func newSessionCmd() *cobra.Command {
	var cookieHeader string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or change the stored kiosk session",
	}
	cmd.PersistentFlags().StringVar(&cookieHeader, "cookie", "", "Cookie header copied from the kiosk browser")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print what every credential store holds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openSession(cookieHeader)
			if err != nil {
				return codeError(2, "%s", err)
			}
			defer env.close()
			return printSnapshot(cmd.Context(), cmd.OutOrStdout(), env.resolver)
		},
	}

	var token, userJSON string
	set := &cobra.Command{
		Use:   "set",
		Short: "Write a session to every credential store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var user entity.User
			if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
				return codeError(2, "invalid --user: %s", err)
			}
			env, err := openSession(cookieHeader)
			if err != nil {
				return codeError(2, "%s", err)
			}
			defer env.close()

			if err := env.resolver.Save(cmd.Context(), entity.Session{Token: token, User: &user}); err != nil {
				return codeError(1, "%s", err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Session saved for role %s\n", user.Role)
			for _, c := range env.jar.Cookies(env.origin) {
				fmt.Fprintf(cmd.OutOrStdout(), "Set-Cookie: %s=%s; Path=/\n", c.Name, c.Value)
			}
			return nil
		},
	}
	set.Flags().StringVar(&token, "token", "", "Bearer token issued by the backend")
	set.Flags().StringVar(&userJSON, "user", "", `User record as JSON, e.g. {"role":"Staff"}`)
	_ = set.MarkFlagRequired("token")
	_ = set.MarkFlagRequired("user")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Clear the session from every credential store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openSession(cookieHeader)
			if err != nil {
				return codeError(2, "%s", err)
			}
			defer env.close()

			if err := env.resolver.Logout(cmd.Context()); err != nil {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "Some stores were not cleared: %s\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out. Continue at %s\n", env.cfg.App.SignInPath)
			return nil
		},
	}

	cmd.AddCommand(show, set, logout)
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var cookieHeader string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Ask the backend whether the stored token is still valid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openSession(cookieHeader)
			if err != nil {
				return codeError(2, "%s", err)
			}
			defer env.close()

			client := &http.Client{Timeout: 15 * time.Second}
			verifier := service.NewSessionVerifier(env.cfg.API.BaseURL, env.resolver, client, logger.NewNop())
			if !verifier.Verify(cmd.Context()) {
				color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), "Session is not valid")
				return codeError(1, "verification failed")
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Session is valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&cookieHeader, "cookie", "", "Cookie header copied from the kiosk browser")
	return cmd
}

func printSnapshot(ctx context.Context, w io.Writer, resolver *service.CredentialResolver) error {
	heading := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	heading.Fprintln(w, "Resolved session")
	if resolver.IsLoggedIn(ctx) {
		ok.Fprintln(w, "  logged in: yes")
	} else {
		bad.Fprintln(w, "  logged in: no")
	}
	if role, found := resolver.Role(ctx); found {
		fmt.Fprintf(w, "  role: %s\n", role)
	} else {
		fmt.Fprintln(w, "  role: (none)")
	}

	for _, snap := range resolver.Snapshot(ctx) {
		heading.Fprintf(w, "Store %s\n", snap.Store)
		fmt.Fprintf(w, "  token: %v\n", snap.HasToken)
		switch {
		case snap.UserErr != "":
			bad.Fprintf(w, "  user: unreadable (%s)\n", snap.UserErr)
		case snap.User != nil:
			raw, err := json.Marshal(snap.User)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  user: %s\n", raw)
		default:
			fmt.Fprintln(w, "  user: (none)")
		}
	}
	return nil
}
