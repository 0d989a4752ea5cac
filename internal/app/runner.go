package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/swapx/internal/cache"
	"github.com/ggonzalez94/swapx/internal/config"
	clierr "github.com/ggonzalez94/swapx/internal/errors"
	"github.com/ggonzalez94/swapx/internal/httpx"
	"github.com/ggonzalez94/swapx/internal/model"
	"github.com/ggonzalez94/swapx/internal/out"
	"github.com/ggonzalez94/swapx/internal/policy"
	"github.com/ggonzalez94/swapx/internal/registry"
	"github.com/ggonzalez94/swapx/internal/schema"
	"github.com/ggonzalez94/swapx/internal/version"
	"github.com/ggonzalez94/swapx/internal/zeroex"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner       *Runner
	flags        config.GlobalFlags
	settings     config.Settings
	cache        *cache.Store
	root         *cobra.Command
	lastCommand  string
	lastWarnings []string

	aggregator    *zeroex.Client
	providerInfos []model.ProviderInfo
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if state.cache != nil {
		_ = state.cache.Close()
	}
	if err == nil {
		return 0
	}
	state.renderError("", err, state.lastWarnings)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Permit2 swap CLI for 0x-routed trades",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeConfig, "load configuration", err)
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			s.lastWarnings = nil
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if s.aggregator == nil {
				httpClient := httpx.New(settings.Timeout, settings.Retries)
				s.aggregator = zeroex.New(httpClient, settings.ZeroExBaseURL, settings.ZeroExAPIKey)
				s.providerInfos = []model.ProviderInfo{s.aggregator.Info()}
			}

			if settings.CacheEnabled && shouldOpenCache(path) && s.cache == nil {
				cacheStore, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open cache", err)
				}
				s.cache = cacheStore
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Upstream request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per upstream request")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newProvidersCommand())
	cmd.AddCommand(s.newSourcesCommand())
	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newRunsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, cacheMetaBypass(), nil)
		},
	}
	return cmd
}

func (s *runtimeState) newProvidersCommand() *cobra.Command {
	root := &cobra.Command{Use: "providers", Short: "Provider commands"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List upstream providers and API key metadata (no keys required)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), s.providerInfos, nil, cacheMetaBypass(), nil)
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newSourcesCommand() *cobra.Command {
	root := &cobra.Command{Use: "sources", Short: "Liquidity source data"}
	var chainArg string
	list := &cobra.Command{
		Use:   "list",
		Short: "List liquidity sources available on a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := registry.ParseChain(chainArg)
			if err != nil {
				return err
			}
			key := cacheKey(trimRootPath(cmd.CommandPath()), map[string]any{"chain": chain.ChainID})
			return s.runCachedCommand(trimRootPath(cmd.CommandPath()), key, 5*time.Minute, func(ctx context.Context) (any, []model.CallInfo, error) {
				start := time.Now()
				names, err := s.aggregator.Sources(ctx, chain.ChainID)
				calls := []model.CallInfo{{Name: "0x", Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
				if err != nil {
					return nil, calls, err
				}
				return model.SourceList{ChainID: chain.ChainID, Count: len(names), Sources: names}, calls, nil
			})
		},
	}
	list.Flags().StringVar(&chainArg, "chain", "", "Chain id or name (e.g. 8453 or base)")
	_ = list.MarkFlagRequired("chain")
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newRunsCommand() *cobra.Command {
	root := &cobra.Command{Use: "runs", Short: "Swap run journal"}
	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled swap runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openRunStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			runs, err := store.List(status, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list runs", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), runs, nil, cacheMetaBypass(), nil)
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by run status (running, completed, skipped, failed)")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum runs to return")
	root.AddCommand(list)

	get := &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show one journaled swap run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openRunStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			run, err := store.Get(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load run", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), run, nil, cacheMetaBypass(), nil)
		},
	}
	root.AddCommand(get)
	return root
}

// runCachedCommand serves a command from the cache when a fresh entry
// exists, otherwise fetches and writes through. A stale entry is served with
// a warning only when the fresh fetch fails with a transient upstream error.
func (s *runtimeState) runCachedCommand(commandPath, key string, ttl time.Duration, fetch func(ctx context.Context) (any, []model.CallInfo, error)) error {
	warnings := []string{}
	var staleData any
	staleAvailable := false
	staleStatus := cacheMetaMiss()

	if s.settings.CacheEnabled && s.cache != nil {
		cached, err := s.cache.Get(key)
		if err == nil && cached.Hit {
			entryStatus := model.CacheStatus{Status: "hit", AgeMS: cached.Age.Milliseconds(), Stale: cached.Stale}
			var data any
			if err := json.Unmarshal(cached.Value, &data); err == nil {
				if !cached.Stale {
					return s.emitSuccess(commandPath, data, warnings, entryStatus, nil)
				}
				staleData = data
				staleAvailable = true
				staleStatus = entryStatus
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()
	data, calls, err := fetch(ctx)
	if err != nil {
		if staleAvailable && staleFallbackAllowed(err) {
			warnings = append(warnings, "upstream fetch failed; serving stale cached data")
			s.lastWarnings = warnings
			return s.emitSuccess(commandPath, staleData, warnings, staleStatus, calls)
		}
		return err
	}

	cacheStatus := cacheMetaMiss()
	if s.settings.CacheEnabled && s.cache != nil {
		if payload, err := json.Marshal(data); err == nil {
			_ = s.cache.Set(key, payload, ttl)
			cacheStatus = model.CacheStatus{Status: "write", AgeMS: 0, Stale: false}
		}
	}
	return s.emitSuccess(commandPath, data, warnings, cacheStatus, calls)
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, cacheStatus model.CacheStatus, calls []model.CallInfo) error {
	s.lastWarnings = warnings
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Upstream:  calls,
			Cache:     cacheStatus,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := clierr.Code(code).TypeName()
	message := err.Error()
	if cliErr, ok := clierr.As(err); ok {
		message = cliErr.Message
		if cliErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cliErr.Message, cliErr.Cause)
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Cache:     cacheMetaBypass(),
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func cacheKey(commandPath string, req any) string {
	buf, _ := json.Marshal(req)
	sum := sha256.Sum256(append([]byte(commandPath+"|"), buf...))
	return hex.EncodeToString(sum[:])
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func statusFromErr(err error) string {
	if err == nil {
		return "ok"
	}
	if cliErr, ok := clierr.As(err); ok {
		switch cliErr.Code {
		case clierr.CodeAuth:
			return "auth_error"
		case clierr.CodeRateLimited:
			return "rate_limited"
		case clierr.CodeUnavailable:
			return "unavailable"
		default:
			return "error"
		}
	}
	return "error"
}

func cacheMetaBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass", AgeMS: 0, Stale: false}
}

func cacheMetaMiss() model.CacheStatus {
	return model.CacheStatus{Status: "miss", AgeMS: 0, Stale: false}
}

func staleFallbackAllowed(err error) bool {
	cliErr, ok := clierr.As(err)
	if !ok {
		return false
	}
	return cliErr.Code == clierr.CodeUnavailable || cliErr.Code == clierr.CodeRateLimited
}

func shouldOpenCache(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "", "version", "schema", "providers", "providers list", "runs", "runs list", "runs get", "swap quote", "swap execute":
		return false
	default:
		return true
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
