package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"done/backend"
	"done/internal/config"
	"done/internal/credentials"
	"done/internal/oauth"
	"done/internal/server"
	"done/internal/smartlist"
	"done/internal/tui"
	"done/internal/utils"
)

// Build metadata, set with -ldflags
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

const defaultLoginTimeout = 5 * time.Minute

// Config holds the settings and injectable dependencies of a CLI run
type Config struct {
	ConfigPath   string // Path to config.yaml (default: XDG config dir)
	Verbose      bool
	OutputFormat string

	Stdin        io.Reader
	Keyring      credentials.Keyring // Override for testing
	Getenv       func(string) string // Override for testing
	Opener       oauth.Opener        // Presents the authorization URL
	IsTerminal   func() bool         // Reports whether the TUI can run
	LoginTimeout time.Duration
}

func (c *Config) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

func (c *Config) isTerminal() bool {
	if c.IsTerminal != nil {
		return c.IsTerminal()
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (c *Config) loginTimeout() time.Duration {
	if c.LoginTimeout > 0 {
		return c.LoginTimeout
	}
	return defaultLoginTimeout
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewDone(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func outputErrorJSON(err error, stdout io.Writer) {
	jsonBytes, _ := json.Marshal(errorResponse{Error: err.Error(), Code: 1})
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

func writeJSON(stdout io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(jsonBytes))
	return err
}

// NewDone creates the root command with injectable IO
func NewDone(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "done",
		Short:   "A to do app for local lists, Microsoft To Do and Google Tasks",
		Long:    "done shows the task lists of every configured provider side by side.\nRun without arguments in a terminal to open the interactive view.",
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.isTerminal() {
				return cmd.Help()
			}
			a, _, err := loadApp(cmd, cfg, stdout)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()
			return runTUI(a)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to the config file")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	cmd.AddCommand(newProvidersCmd(stdout, cfg))
	cmd.AddCommand(newLoginCmd(stdout, cfg))
	cmd.AddCommand(newLogoutCmd(stdout, cfg))
	cmd.AddCommand(newCallbackCmd(stdout, cfg))
	cmd.AddCommand(newListsCmd(stdout, cfg))
	cmd.AddCommand(newTasksCmd(stdout, cfg))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// loadApp merges the persistent flags into cfg and builds the app.
// The returned bool reports JSON output.
func loadApp(cmd *cobra.Command, cfg *Config, stdout io.Writer) (*app, bool, error) {
	run := *cfg
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		run.ConfigPath = path
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		run.Verbose = true
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		run.OutputFormat = "json"
	}
	if run.Opener == nil {
		run.Opener = cliOpener(stdout)
	}

	a, err := newApp(cmd.Context(), &run)
	if err != nil {
		return nil, false, err
	}
	return a, a.conf.OutputFormat == "json", nil
}

// cliOpener prints the authorization URL and tries to open a browser.
func cliOpener(stdout io.Writer) oauth.Opener {
	return func(authURL string) error {
		_, _ = fmt.Fprintf(stdout, "Open this URL to log in:\n\n  %s\n\n", authURL)
		if err := oauth.BrowserOpener(authURL); err != nil {
			utils.Debugf("Could not open a browser: %v", err)
		}
		return nil
	}
}

// runTUI runs the interactive view until the user quits or a signal arrives.
func runTUI(a *app) error {
	logFile, err := utils.OpenSessionLog(a.conf.IsBackgroundLoggingEnabled())
	if err != nil {
		utils.Warnf("Session log disabled: %v", err)
	}
	defer func() { _ = logFile.Close() }()
	if logFile.Enabled() {
		utils.Debugf("Logging to %s while the TUI runs", logFile.Path())
	}
	// the TUI owns the terminal; logs go to the file or nowhere
	utils.SetOutput(logFile.Writer())
	defer utils.SetOutput(nil)

	if err := a.startServer(); err != nil {
		utils.Warnf("Callback server unavailable: %v", err)
	}

	stop := a.shutdown.ListenForSignals()
	defer stop()
	ctx := a.shutdown.Context()

	model := tui.New(a.registry,
		tui.WithContext(ctx),
		tui.WithDefaultList(a.conf.DefaultList),
		tui.WithExpandSubTasks(a.conf.UI.ExpandSubTasks),
		tui.WithSidebarCollapsed(a.conf.UI.SidebarCollapsed),
	)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}

// =============================================================================
// Providers
// =============================================================================

type providerJSON struct {
	Service     string `json:"service"`
	Available   bool   `json:"available"`
	Credentials bool   `json:"credentials"`
	Source      string `json:"source,omitempty"`
}

func newProvidersCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and their login state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, jsonOutput, err := loadApp(cmd, cfg, stdout)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()
			return doProviders(cmd.Context(), a, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func doProviders(ctx context.Context, a *app, stdout io.Writer, jsonOutput bool) error {
	services := a.registry.Services()
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = string(s)
	}
	statuses, err := a.creds.ListBackends(ctx, names)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}

	output := make([]providerJSON, 0, len(services))
	for i, s := range services {
		p, _ := a.registry.Get(s)
		entry := providerJSON{Service: string(s), Available: p.Available()}
		if s != backend.ServiceLocal {
			entry.Credentials = statuses[i].HasCredentials
			if entry.Credentials {
				entry.Source = string(statuses[i].Source)
			}
		}
		output = append(output, entry)
	}

	if jsonOutput {
		return writeJSON(stdout, output)
	}
	for _, e := range output {
		state := "logged out"
		switch {
		case e.Service == string(backend.ServiceLocal):
			state = "ready"
		case e.Available:
			state = "logged in"
		case e.Credentials:
			state = "token stored (" + e.Source + ")"
		}
		_, _ = fmt.Fprintf(stdout, "%-8s %s\n", e.Service, state)
	}
	return nil
}

// =============================================================================
// Login / Logout / Callback
// =============================================================================

// chooseProvider returns the named remote provider, or prompts when several
// are configured.
func chooseProvider(a *app, cfg *Config, stdout io.Writer, name string) (backend.Service, backend.Provider, error) {
	if name != "" {
		return a.provider(name)
	}
	var remote []backend.Service
	for _, s := range a.registry.Services() {
		if s != backend.ServiceLocal {
			remote = append(remote, s)
		}
	}
	switch len(remote) {
	case 0:
		return "", nil, utils.ErrProviderNotConfigured("mstodo or google")
	case 1:
		return a.provider(string(remote[0]))
	}
	names := make([]string, len(remote))
	for i, s := range remote {
		names[i] = string(s)
	}
	idx, err := utils.NewPrompter(cfg.stdin(), stdout).Choose("Select a provider", names)
	if err != nil {
		return "", nil, err
	}
	return a.provider(string(remote[idx]))
}

func newLoginCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "login [provider]",
		Short: "Log in to a remote provider",
		Long:  "Open the provider's consent page and wait for its redirect on the loopback server.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(cmd, cfg, stdout)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			service, p, err := chooseProvider(a, cfg, stdout, name)
			if err != nil {
				return err
			}
			return doLogin(a, cfg, stdout, service, p)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func doLogin(a *app, cfg *Config, stdout io.Writer, service backend.Service, p backend.Provider) error {
	if service == backend.ServiceLocal {
		_, _ = fmt.Fprintln(stdout, "The local provider needs no login")
		return nil
	}
	if err := a.startServer(); err != nil {
		return utils.WrapWithSuggestion(err,
			"Another done instance may be running. Set server.addr in the config to a free port")
	}

	stop := a.shutdown.ListenForSignals()
	defer stop()
	ctx, cancel := context.WithTimeout(a.shutdown.Context(), cfg.loginTimeout())
	defer cancel()
	results := a.server.Subscribe(ctx)

	if err := p.Login(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Waiting for %s to redirect back...\n", service)

	for {
		select {
		case res := <-results:
			if res.Service != service {
				continue
			}
			if res.Err != nil {
				utils.Debugf("Login to %s failed: %v", service, res.Err)
				return utils.ErrAuthenticationFailed(string(service))
			}
			_, _ = fmt.Fprintf(stdout, "Logged in to %s\n", service)
			return nil
		case <-ctx.Done():
			return utils.WrapWithSuggestion(
				fmt.Errorf("login to %s did not complete: %w", service, ctx.Err()),
				"Run 'done login "+string(service)+"' again and finish the consent page")
		}
	}
}

func newLogoutCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout [provider]",
		Short: "Forget the stored token of a remote provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(cmd, cfg, stdout)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			service, p, err := chooseProvider(a, cfg, stdout, name)
			if err != nil {
				return err
			}

			yes, _ := cmd.Flags().GetBool("yes")
			if !yes && !utils.NewPrompter(cfg.stdin(), stdout).Confirm(fmt.Sprintf("Log out of %s?", service)) {
				_, _ = fmt.Fprintln(stdout, "Cancelled")
				return nil
			}
			if err := p.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Logged out of %s\n", service)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newCallbackCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callback <uri>",
		Short: "Hand an OAuth redirect URI to the running login",
		Long: "Forward a redirect URI (for example one copied from the browser) to the " +
			"loopback server of the done process that started the login.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load(configFlag(cmd, cfg))
			if err != nil {
				return err
			}
			provider, _ := cmd.Flags().GetString("provider")
			return doCallback(cmd.Context(), conf.Server.Addr, args[0], provider, stdout)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP("provider", "p", "", "Provider the URI belongs to, when the URI does not name it")
	return cmd
}

func configFlag(cmd *cobra.Command, cfg *Config) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return cfg.ConfigPath
}

// callbackService finds the provider named by a redirect URI: the
// /oauth/<service>/callback path, the host of a done://<service> link, or
// the explicit fallback.
func callbackService(u *url.URL, fallback string) (backend.Service, error) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 3 && parts[0] == "oauth" && parts[2] == "callback" {
		return backend.Service(parts[1]), nil
	}
	if u.Scheme == "done" && u.Host != "" {
		return backend.Service(u.Host), nil
	}
	if fallback != "" {
		return backend.Service(fallback), nil
	}
	return "", utils.WrapWithSuggestion(
		fmt.Errorf("cannot tell which provider %q belongs to", u.Redacted()),
		"Pass --provider mstodo or --provider google")
}

func doCallback(ctx context.Context, addr, rawURI, provider string, stdout io.Writer) error {
	u, err := url.Parse(rawURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}
	service, err := callbackService(u, provider)
	if err != nil {
		return err
	}

	target := url.URL{Scheme: "http", Host: addr, Path: server.CallbackPath(service), RawQuery: u.RawQuery}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return utils.WrapWithSuggestion(
			fmt.Errorf("no login is waiting on %s: %w", addr, err),
			"Start 'done login "+string(service)+"' first and keep it running")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		_, _ = fmt.Fprintf(stdout, "Logged in to %s\n", service)
		return nil
	case http.StatusNotFound:
		return utils.ErrProviderNotConfigured(string(service))
	case http.StatusBadRequest:
		return utils.ErrAuthenticationFailed(string(service))
	}
	return fmt.Errorf("login to %s failed: %s", service, resp.Status)
}

// =============================================================================
// Lists and tasks
// =============================================================================

type listJSON struct {
	Service     string `json:"service"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

func newListsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show the task lists of every provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, jsonOutput, err := loadApp(cmd, cfg, stdout)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			services := a.registry.Available()
			if name, _ := cmd.Flags().GetString("provider"); name != "" {
				service, _, err := a.provider(name)
				if err != nil {
					return err
				}
				services = []backend.Service{service}
			}
			return doLists(cmd.Context(), a, services, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP("provider", "p", "", "Only show this provider")
	return cmd
}

func doLists(ctx context.Context, a *app, services []backend.Service, stdout io.Writer, jsonOutput bool) error {
	output := make([]listJSON, 0)
	for _, service := range services {
		p, _ := a.registry.Get(service)
		if !p.Available() {
			if !jsonOutput {
				_, _ = fmt.Fprintf(stdout, "%s: not logged in\n", service)
			}
			continue
		}
		lists, err := p.ReadLists(ctx)
		if err != nil {
			return providerError(service, err)
		}
		if !jsonOutput {
			_, _ = fmt.Fprintf(stdout, "%s\n", service)
		}
		for _, l := range lists {
			output = append(output, listJSON{
				Service:     string(service),
				ID:          l.ID,
				Name:        l.Name,
				Description: l.Description,
				Icon:        l.Icon,
			})
			if !jsonOutput {
				_, _ = fmt.Fprintf(stdout, "  %s\n", l.Name)
			}
		}
	}
	if jsonOutput {
		return writeJSON(stdout, output)
	}
	return nil
}

type taskJSON struct {
	ID         string   `json:"id"`
	List       string   `json:"list"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	Priority   string   `json:"priority,omitempty"`
	Favorite   bool     `json:"favorite,omitempty"`
	Today      bool     `json:"today,omitempty"`
	DueDate    string   `json:"due_date,omitempty"`
	Recurrence string   `json:"recurrence,omitempty"`
	SubTasks   []string `json:"subtasks,omitempty"`
}

func newTasksCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks [list]",
		Short: "Show the tasks of a list",
		Long: "Show the tasks of a list by name, or of a smart list " +
			"(all, today, starred, next7days, done). Defaults to the configured default_list.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, jsonOutput, err := loadApp(cmd, cfg, stdout)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			name := a.conf.DefaultList
			if len(args) == 1 {
				name = args[0]
			}
			providerName, _ := cmd.Flags().GetString("provider")
			service, p, err := a.provider(providerName)
			if err != nil {
				return err
			}
			if !p.Available() {
				return utils.ErrNotLoggedIn(string(service))
			}
			entries, err := readEntries(cmd.Context(), p, name, time.Now())
			if err != nil {
				return providerError(service, err)
			}
			return printEntries(entries, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP("provider", "p", "", "Provider to read from (default: the first available)")
	return cmd
}

// providerError adds a suggestion to transport failures.
func providerError(service backend.Service, err error) error {
	if errors.Is(err, backend.ErrTransport) {
		return utils.ErrProviderOffline(string(service), err.Error())
	}
	return err
}

// readEntries loads a smart list across the provider, or one named list.
func readEntries(ctx context.Context, p backend.Provider, name string, now time.Time) ([]smartlist.Entry, error) {
	if list, ok := smartlist.Parse(name); ok {
		tasks, err := p.ReadTasks(ctx)
		if err != nil {
			return nil, err
		}
		return smartlist.Resolve(ctx, p, smartlist.Filter(tasks, list, now))
	}

	lists, err := p.ReadLists(ctx)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, utils.ErrNoListsAvailable()
	}
	for _, l := range lists {
		if l.ID == name || strings.EqualFold(l.Name, name) {
			tasks, err := p.ReadTasksFromList(ctx, l.ID)
			if err != nil {
				return nil, err
			}
			entries := make([]smartlist.Entry, len(tasks))
			for i, t := range tasks {
				entries[i] = smartlist.Entry{Task: t, List: l}
			}
			return entries, nil
		}
	}
	return nil, utils.ErrListNotFound(name)
}

func statusIcon(status backend.TaskStatus) string {
	switch status {
	case backend.StatusCompleted:
		return "[✓]"
	case backend.StatusInProgress:
		return "[~]"
	}
	return "[ ]"
}

func printEntries(entries []smartlist.Entry, stdout io.Writer, jsonOutput bool) error {
	if jsonOutput {
		output := make([]taskJSON, 0, len(entries))
		for _, e := range entries {
			t := e.Task
			item := taskJSON{
				ID:       t.ID,
				List:     e.List.Name,
				Title:    t.Title,
				Status:   string(t.Status),
				Priority: string(t.Priority),
				Favorite: t.Favorite,
				Today:    t.Today,
			}
			if t.DueDate != nil {
				item.DueDate = t.DueDate.Format("2006-01-02")
			}
			if t.Recurrence != nil && !t.Recurrence.IsEmpty() {
				item.Recurrence = t.Recurrence.String()
			}
			for _, st := range t.SubTasks {
				item.SubTasks = append(item.SubTasks, st.Title)
			}
			output = append(output, item)
		}
		return writeJSON(stdout, output)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(stdout, "No tasks")
		return nil
	}
	for _, e := range entries {
		t := e.Task
		line := statusIcon(t.Status) + " " + t.Title
		if t.Favorite {
			line += " ★"
		}
		if t.DueDate != nil {
			line += " (due " + t.DueDate.Format("2006-01-02") + ")"
		}
		if t.Recurrence != nil && !t.Recurrence.IsEmpty() {
			line += " ↻ " + t.Recurrence.String()
		}
		line += "  [" + e.List.Name + "]"
		_, _ = fmt.Fprintln(stdout, line)
		for _, st := range t.SubTasks {
			_, _ = fmt.Fprintf(stdout, "    └─ %s %s\n", statusIcon(st.Status), st.Title)
		}
	}
	return nil
}

// =============================================================================
// Version
// =============================================================================

type versionJSON struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionJSON{
				Version:   Version,
				Commit:    valueOr(Commit, "unknown"),
				BuildDate: valueOr(BuildDate, "unknown"),
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return writeJSON(stdout, info)
			}
			_, _ = fmt.Fprintf(stdout, "done\nVersion: %s\nCommit: %s\nBuilt: %s\n", info.Version, info.Commit, info.BuildDate)
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				_, _ = fmt.Fprintf(stdout, "Go Version: %s\nPlatform: %s\n", info.GoVersion, info.Platform)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	return cmd
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
