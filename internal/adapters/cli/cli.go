package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"trade-ledger/internal/app"
	"trade-ledger/internal/core"

	"github.com/sirupsen/logrus"
)

const usage = `Available: reconcile, stock <productID> [--by-date], levels [--by-date],
           dashboard <operator|staff|customer> [customerID], interpret "<text>",
           export <file.xlsx> [--status=paid|unpaid]`

// Run executes a one-shot CLI command and returns the process exit code.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, log *logrus.Logger, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	if err := run(ctx, svc, os.Stdout, args); err != nil {
		log.WithError(err).WithField("command", args[0]).Error("command failed")
		return 1
	}
	return 0
}

func run(ctx context.Context, svc app.ApplicationService, out io.Writer, args []string) error {
	cmd, rest := args[0], args[1:]
	positional, flags := splitFlags(rest)
	by := core.LatestByID
	if flags["by-date"] != "" {
		by = core.LatestByDate
	}

	switch cmd {
	case "reconcile", "rec":
		result, err := svc.RunReconciliation(ctx)
		if err != nil {
			return err
		}
		printReconciliation(out, result)
		return nil

	case "stock":
		if len(positional) < 1 {
			return fmt.Errorf("usage: app stock <productID> [--by-date]")
		}
		productID, err := strconv.Atoi(positional[0])
		if err != nil {
			return fmt.Errorf("invalid product id %q", positional[0])
		}
		entry, err := svc.LatestBalance(ctx, productID, by)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s  closing %s on %s\n", entry.ProductCode, entry.ProductName, entry.Closing.StringFixed(2), entry.EntryDate)
		return nil

	case "levels":
		result, err := svc.StockLevels(ctx, by)
		if err != nil {
			return err
		}
		printLevels(out, result)
		return nil

	case "dashboard", "dash":
		if len(positional) < 1 {
			return fmt.Errorf("usage: app dashboard <operator|staff|customer> [customerID]")
		}
		var customerID *int
		if len(positional) > 1 {
			id, err := strconv.Atoi(positional[1])
			if err != nil {
				return fmt.Errorf("invalid customer id %q", positional[1])
			}
			customerID = &id
		}
		role, err := core.RoleFromString(positional[0], customerID)
		if err != nil {
			return err
		}
		dash, err := svc.Dashboard(ctx, core.Identity{Role: role})
		if err != nil {
			return err
		}
		return printJSON(out, dash)

	case "interpret", "int":
		if len(positional) < 1 {
			return fmt.Errorf("usage: app interpret \"<order note>\"")
		}
		result, err := svc.InterpretSale(ctx, app.InterpretRequest{Text: strings.Join(positional, " ")})
		if err != nil {
			return err
		}
		return printJSON(out, result)

	case "export":
		if len(positional) < 1 {
			return fmt.Errorf("usage: app export <file.xlsx> [--status=paid|unpaid]")
		}
		return exportDebts(ctx, svc, out, positional[0], core.Status(flags["status"]))

	default:
		return fmt.Errorf("unknown command: %s\n%s", cmd, usage)
	}
}

func exportDebts(ctx context.Context, svc app.ApplicationService, out io.Writer, path string, status core.Status) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := svc.ExportDebts(ctx, core.DebtFilter{Status: status}, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	fmt.Fprintf(out, "Debt ledger written to %s\n", path)
	return nil
}

// splitFlags separates --name[=value] flags from positional arguments.
func splitFlags(args []string) ([]string, map[string]string) {
	flags := map[string]string{}
	var positional []string
	for _, a := range args {
		if !strings.HasPrefix(a, "--") {
			positional = append(positional, a)
			continue
		}
		name, value, ok := strings.Cut(strings.TrimPrefix(a, "--"), "=")
		if !ok {
			value = "true"
		}
		flags[name] = value
	}
	return positional, flags
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReconciliation(out io.Writer, result *app.ReconciliationResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  RECONCILIATION  %s\n", result.CorrelationID)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	if len(result.Reports) == 0 {
		fmt.Fprintln(out, "  No divergences found.")
	}
	for _, r := range result.Reports {
		fmt.Fprintf(out, "  %-22s %-6s %6d  %s\n", r.CheckType, r.EntityType, r.EntityID, r.Details)
	}
	fmt.Fprintln(out, strings.Repeat("=", 72))
}

func printLevels(out io.Writer, result *app.StockLevelsResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-10s %-30s %12s %-6s %s\n", "CODE", "NAME", "CLOSING", "UNIT", "DATE")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, l := range result.Levels {
		date := l.EntryDate
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(out, "  %-10s %-30s %12s %-6s %s\n", l.ProductCode, l.ProductName, l.Closing.StringFixed(2), l.Unit, date)
	}
	fmt.Fprintln(out, strings.Repeat("-", 72))
}
