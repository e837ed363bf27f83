// Command inventory-check audits the configured inventory store against the
// built-in consistency rules and reports any violations. It exits non-zero
// when blocking violations are found so it can gate deployments and backups.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"inventorycore/internal/core"
	"inventorycore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inventory-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var envFile string
	var timeout time.Duration
	fs.StringVar(&envFile, "env", ".env", "env file with storage settings, loaded when present")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "audit timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// A missing env file is fine; the process environment still applies.
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger()

	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		log.Error().Err(err).Msg("open store")
		return 2
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	violations, err := audit(ctx, store, engine)
	if err != nil {
		log.Error().Err(err).Msg("audit failed")
		return 2
	}
	return report(stdout, violations)
}

// audit evaluates every registered rule against the committed state.
func audit(ctx context.Context, store domain.PersistentStore, engine *domain.RulesEngine) ([]domain.Violation, error) {
	var result domain.Result
	err := store.View(ctx, func(view domain.TransactionView) error {
		res, err := engine.Evaluate(ctx, view, nil)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	violations := result.Violations
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].Rule != violations[j].Rule {
			return violations[i].Rule < violations[j].Rule
		}
		return violations[i].EntityID < violations[j].EntityID
	})
	return violations, nil
}

// report prints the violations and returns the process exit code: 1 when any
// violation is blocking, 0 otherwise.
func report(stdout io.Writer, violations []domain.Violation) int {
	blocking := 0
	for _, v := range violations {
		if v.Severity == domain.SeverityBlock {
			blocking++
		}
		fmt.Fprintf(stdout, "%s [%s] %s/%s: %s\n", v.Severity, v.Rule, v.Entity, v.EntityID, v.Message)
	}
	if blocking > 0 {
		fmt.Fprintf(stdout, "Inventory audit failed: %d blocking violation(s).\n", blocking)
		return 1
	}
	fmt.Fprintln(stdout, "Inventory audit passed.")
	return 0
}
