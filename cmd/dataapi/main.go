package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	otellog "go.opentelemetry.io/otel/sdk/log"

	"dataapi/internal/config"
	"dataapi/internal/dbexec"
	"dataapi/internal/gqlrequest"
	"dataapi/internal/logging"
	"dataapi/internal/metadata"
	"dataapi/internal/policy"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(); err != nil {
		slog.Error("dataapi error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	pflag.String("request", "", "GraphQL request: a bare document or a JSON envelope")
	pflag.String("request-file", "", "Path to a request file (use - for stdin)")
	pflag.Bool("execute", false, "Execute the built statements instead of printing them")
	pflag.String("claims", "", "Caller claims as a JSON object, propagated as session variables")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Printf("dataapi %s (%s)\n", Version, Commit)
		return nil
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	ctx := context.Background()
	var loggerProvider *otellog.LoggerProvider
	if cfg.Logging.ExportsEnabled {
		loggerProvider, err = logging.NewExportProvider(ctx, logging.ExportConfig{
			Endpoint:       cfg.Logging.ExportEndpoint,
			Insecure:       cfg.Logging.ExportInsecure,
			ServiceName:    "dataapi",
			ServiceVersion: Version,
		})
		if err != nil {
			return err
		}
		defer func() {
			if shutdownErr := logging.ShutdownProvider(context.Background(), loggerProvider); shutdownErr != nil {
				slog.Error("failed to shutdown logger provider", slog.String("error", shutdownErr.Error()))
			}
		}()
	}

	logger := logging.NewLogger(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		LoggerProvider: loggerProvider,
	}).WithRequestID(uuid.NewString())
	ctx = logging.WithLogger(ctx, logger)

	if cfg.Runtime.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Runtime.RequestTimeout)
		defer cancel()
	}

	session, err := sessionFromFlags()
	if err != nil {
		return err
	}
	if session != nil {
		ctx = policy.WithSession(ctx, session)
	}

	body, err := requestBody()
	if err != nil {
		return err
	}

	req, err := gqlrequest.DecodeRequest(body)
	if err != nil {
		return err
	}
	op, err := gqlrequest.Parse(req)
	if err != nil {
		return err
	}
	if hash, hashErr := op.CanonicalHash(); hashErr == nil {
		logger.Debug("parsed operation",
			slog.String("operation", op.Name()),
			slog.String("hash", hash),
		)
	}

	provider := metadata.NewInMemoryProvider(cfg.Entities)
	plans, err := newDispatcher(provider, cfg.Entities, cfg.Runtime).PlanOperation(op)
	if err != nil {
		return err
	}

	doExecute, _ := pflag.CommandLine.GetBool("execute")
	if !doExecute {
		return printPlans(plans)
	}
	return executePlans(ctx, cfg, provider, plans)
}

// sessionFromFlags parses the --claims JSON object into a session
// context. An absent flag means no session variables.
func sessionFromFlags() (*policy.SessionContext, error) {
	raw, _ := pflag.CommandLine.GetString("claims")
	return parseClaims(raw)
}

func parseClaims(raw string) (*policy.SessionContext, error) {
	if raw == "" {
		return nil, nil
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, fmt.Errorf("invalid claims: %w", err)
	}
	return &policy.SessionContext{Claims: claims}, nil
}

func requestBody() ([]byte, error) {
	if request, _ := pflag.CommandLine.GetString("request"); request != "" {
		return []byte(request), nil
	}
	path, _ := pflag.CommandLine.GetString("request-file")
	switch path {
	case "":
		return nil, fmt.Errorf("no request given: pass --request or --request-file")
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(path)
	}
}

func printPlans(plans []plannedStatement) error {
	for _, plan := range plans {
		if plan.Multi != nil {
			if err := printMultiCreate(plan); err != nil {
				return err
			}
			continue
		}

		query, args, err := plan.Statement.Preview()
		if err != nil {
			return err
		}
		fmt.Printf("-- %s\n%s\n", plan.Field, query)
		if len(args) > 0 {
			encoded, err := json.Marshal(args)
			if err != nil {
				return err
			}
			fmt.Printf("-- args: %s\n", encoded)
		}
	}
	return nil
}

// printMultiCreate shows the insertion order of a nested create. The
// per-row SQL depends on keys generated at execution time, so only the
// ordering can be previewed.
func printMultiCreate(plan plannedStatement) error {
	order, err := plan.Multi.InsertOrder()
	if err != nil {
		return err
	}
	fmt.Printf("-- %s: nested create, insertion order:\n", plan.Field)
	for i, idx := range order {
		fmt.Printf("--   %d. %s\n", i+1, plan.Multi.Nodes[idx].Entity)
	}
	return nil
}

func executePlans(ctx context.Context, cfg *config.Config, provider *metadata.InMemoryProvider, plans []plannedStatement) error {
	db, err := cfg.Database.Open()
	if err != nil {
		return err
	}
	defer db.Close()

	exec := executorFor(cfg, db)
	for _, plan := range plans {
		switch {
		case plan.Multi != nil:
			rows, err := dbexec.ExecuteMultipleCreate(ctx, exec, plan.Multi,
				dbexec.MultiCreateOptions{Provider: provider, DevelopmentMode: cfg.Runtime.DevelopmentMode})
			if err != nil {
				return err
			}
			if err := printResult(plan.Field, rows); err != nil {
				return err
			}

		case plan.Kind == kindList || plan.Kind == kindByKey:
			rows, err := dbexec.RunQuery(ctx, exec, plan.Statement)
			if err != nil {
				return err
			}
			if err := printResult(plan.Field, rows); err != nil {
				return err
			}

		default:
			result, err := dbexec.RunExec(ctx, exec, plan.Statement)
			if err != nil {
				return err
			}
			affected, _ := result.RowsAffected()
			if err := printResult(plan.Field, map[string]interface{}{"rowsAffected": affected}); err != nil {
				return err
			}
		}
	}
	return nil
}

// executorFor picks the session executor when claims propagation is
// configured, so row-level policies can read caller claims as session
// variables.
func executorFor(cfg *config.Config, db *sql.DB) dbexec.QueryExecutor {
	if cfg.Database.SessionClaims {
		return dbexec.NewSessionExecutor(dbexec.SessionExecutorConfig{
			DB:           db,
			DatabaseName: cfg.Database.Database,
			SessionFrom:  policy.SessionFromContext,
		})
	}
	return dbexec.NewStandardExecutor(db)
}

func printResult(field string, value interface{}) error {
	encoded, err := json.MarshalIndent(map[string]interface{}{field: value}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
