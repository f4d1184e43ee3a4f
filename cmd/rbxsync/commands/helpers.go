package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbxsync/rbxsync/pkg/codegen"
	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/content"
	"github.com/rbxsync/rbxsync/pkg/engine"
	"github.com/rbxsync/rbxsync/pkg/history"
	"github.com/rbxsync/rbxsync/pkg/provider/roblox"
	"github.com/rbxsync/rbxsync/pkg/state"
	"github.com/rbxsync/rbxsync/pkg/telemetry"
)

// historyFileName is the run-history database, stored next to the config.
const historyFileName = "rbxsync.history.db"

// ExitCode maps an error to the process exit code: 2 validation, 3 identity,
// 4 unresolved conflicts, 5 provider failure, 1 anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := engine.AsConflict(err); ok {
		return 4
	}
	switch {
	case engine.IsValidation(err):
		return 2
	case engine.IsIdentity(err):
		return 3
	case engine.IsProvider(err):
		return 5
	}
	return 1
}

// loadRuntime reads environment settings and builds the logger.
func loadRuntime() (*config.Env, zerolog.Logger) {
	env, err := config.LoadEnv()
	if err != nil {
		env = &config.Env{LogLevel: "info", LogFormat: "console"}
	}

	level := env.LogLevel
	if verbose {
		level = "debug"
	}
	log := telemetry.NewLogger(telemetry.LoggerConfig{Level: level, Format: env.LogFormat})
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse environment, using defaults")
	}
	return env, log
}

// resolveAPIKey prefers the flag over the environment.
func resolveAPIKey(env *config.Env) (string, error) {
	if apiKeyFlag != "" {
		return apiKeyFlag, nil
	}
	if env.APIKey != "" {
		return env.APIKey, nil
	}
	return "", engine.NewValidationError("no API key: pass --api-key or set RBXSYNC_API_KEY", nil)
}

// configDir is the directory of the config file; icon paths, the checkpoint,
// and codegen outputs resolve relative to it.
func configDir() string {
	return filepath.Dir(configPath)
}

func checkpointPath() string {
	return filepath.Join(configDir(), state.FileName)
}

func contentStore() *content.FileStore {
	return content.NewFileStore()
}

// loadProject loads and validates the desired state.
func loadProject() (*config.Project, error) {
	project, err := config.Load(configPath)
	if err != nil {
		return nil, engine.NewValidationError("invalid desired state", err)
	}
	return project, nil
}

// loadCheckpoint loads the applied-state checkpoint next to the config.
func loadCheckpoint() (*state.Checkpoint, error) {
	cp, err := state.Load(checkpointPath())
	if err != nil {
		return nil, engine.NewValidationError("invalid checkpoint", err)
	}
	return cp, nil
}

func newClient(project *config.Project, apiKey string, log zerolog.Logger) *roblox.Client {
	return roblox.NewClient(roblox.Options{
		APIKey:         apiKey,
		UniverseID:     project.Experience.UniverseID,
		Bleed:          project.Icons.BleedEnabled(),
		CreatorIsGroup: project.Experience.Creator.Type == config.CreatorGroup,
		Log:            log,
	})
}

// openHistoryStore opens the local run history. History is informational, so
// a failure to open it degrades to a warning and a nil store.
func openHistoryStore(ctx context.Context, log zerolog.Logger) *history.Store {
	if noHistory {
		return nil
	}
	store, err := history.Open(ctx, filepath.Join(configDir(), historyFileName))
	if err != nil {
		log.Warn().Err(err).Msg("run history unavailable")
		return nil
	}
	return store
}

// finishRun closes out a history run, tolerating store failures.
func finishRun(ctx context.Context, store *history.Store, log zerolog.Logger, runID string, runErr error, summary history.RunSummary) {
	if store == nil {
		return
	}
	status := history.RunStatusCompleted
	var msg *string
	if runErr != nil {
		status = history.RunStatusFailed
		s := runErr.Error()
		msg = &s
	}
	if err := store.FinishRun(ctx, runID, status, msg, summary); err != nil {
		log.Warn().Err(err).Msg("failed to record run outcome")
	}
}

// startSpan opens a span on the global tracer. Without --trace the provider
// is a no-op.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("rbxsync").Start(ctx, name)
}

// dumpMetrics writes the metrics textfile when --metrics-file is set.
func dumpMetrics(m *telemetry.Metrics, log zerolog.Logger) {
	if metricsFile == "" {
		return
	}
	if err := m.WriteTextfile(metricsFile); err != nil {
		log.Warn().Err(err).Str("path", metricsFile).Msg("failed to write metrics file")
	}
}

// parseKind maps a CLI argument to a resource kind. Both singular and plural
// spellings are accepted.
func parseKind(arg string) (engine.Kind, error) {
	switch arg {
	case "pass", "passes":
		return engine.KindPass, nil
	case "badge", "badges":
		return engine.KindBadge, nil
	case "product", "products":
		return engine.KindProduct, nil
	}
	return "", fmt.Errorf("unknown resource kind %q (expected passes, badges, or products)", arg)
}

func printPlanAction(kind engine.Kind, action engine.ResourceAction) {
	switch action.Action {
	case engine.ActionCreate:
		fmt.Printf("  + create %s %s\n", kind, action.Key)
	case engine.ActionUpdate:
		fmt.Printf("  ~ update %s %s\n", kind, action.Key)
		for _, change := range action.Changes {
			fmt.Printf("    · %s\n", change)
		}
	case engine.ActionSkip:
		fmt.Printf("  = skip   %s %s\n", kind, action.Key)
	}
}

// runCodegen regenerates configured output files after a successful sync.
func runCodegen(project *config.Project, cp *state.Checkpoint) error {
	written, err := codegen.Generate(project, cp, configDir())
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Printf("✓ Generated %s\n", path)
	}
	return nil
}
