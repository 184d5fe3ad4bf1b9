package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"trade-ledger/internal/app"
	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// lowConfidence is the draft confidence below which the desk is warned.
const lowConfidence = 0.6

var errExit = errors.New("exit")

// Run starts the interactive sales desk. Slash commands are dispatched
// deterministically; any other line is an order note routed through the
// interpreter, and the resulting draft is recorded only after approval.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer) {
	d := &desk{ctx: ctx, svc: svc, in: reader, out: out}

	fmt.Fprintln(out, "Trade Ledger sales desk")
	fmt.Fprintln(out, "Type an order note to draft a sale, or use /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(out, "\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if err != nil {
				return
			}
			continue
		}

		if strings.HasPrefix(input, "/") {
			if err := d.dispatch(input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return
				}
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}

		d.interpret(input)
	}
}

type desk struct {
	ctx context.Context
	svc app.ApplicationService
	in  *bufio.Reader
	out io.Writer
}

// readLine prompts for one line. At end of input it returns "cancel" so
// every prompt loop terminates.
func (d *desk) readLine(prompt string) string {
	fmt.Fprint(d.out, prompt)
	line, err := d.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return "cancel"
	}
	return line
}

func (d *desk) dispatch(input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(tokens[0]), tokens[1:]

	switch cmd {
	case "products":
		result, err := d.svc.ListProducts(d.ctx, true)
		if err != nil {
			return err
		}
		printProducts(d.out, result)

	case "customers":
		result, err := d.svc.ListCustomers(d.ctx, true)
		if err != nil {
			return err
		}
		printCustomers(d.out, result)

	case "levels", "stock":
		by := core.LatestByID
		if len(args) > 0 && args[0] == "by-date" {
			by = core.LatestByDate
		}
		result, err := d.svc.StockLevels(d.ctx, by)
		if err != nil {
			return err
		}
		printLevels(d.out, result)

	case "debts":
		f := core.DebtFilter{Status: core.StatusUnpaid}
		if len(args) > 0 && args[0] == "all" {
			f.Status = ""
		}
		result, err := d.svc.ListDebts(d.ctx, f)
		if err != nil {
			return err
		}
		printDebts(d.out, result)

	case "pay":
		if len(args) < 2 {
			fmt.Fprintln(d.out, "Usage: /pay <debt-id> <amount>")
			return nil
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(d.out, "Invalid debt id: %s\n", args[0])
			return nil
		}
		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			fmt.Fprintf(d.out, "Invalid amount: %s\n", args[1])
			return nil
		}
		debt, err := d.svc.ApplyPayment(d.ctx, id, app.PaymentRequest{Amount: amount})
		if err != nil {
			return err
		}
		fmt.Fprintf(d.out, "Payment recorded on %s. Remaining %s, status %s.\n",
			debt.InvoiceNumber, debt.Remaining.StringFixed(2), debt.Status)

	case "sale":
		d.saleWizard()

	case "reconcile":
		result, err := d.svc.RunReconciliation(d.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.out, "Reconciliation %s: %d divergence(s).\n", result.CorrelationID, len(result.Reports))
		for _, r := range result.Reports {
			fmt.Fprintf(d.out, "  %s %s #%d  %s\n", r.CheckType, r.EntityType, r.EntityID, r.Details)
		}

	case "help", "h":
		printHelp(d.out)

	case "exit", "quit", "q":
		return errExit

	default:
		fmt.Fprintf(d.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

// interpret drafts a sale from a free-text note and records it on approval.
func (d *desk) interpret(note string) {
	fmt.Fprintln(d.out, "[AI] Processing...")
	result, err := d.svc.InterpretSale(d.ctx, app.InterpretRequest{Text: note})
	if err != nil {
		fmt.Fprintf(d.out, "Could not draft a sale: %v\n", err)
		fmt.Fprintln(d.out, "Try /sale to enter it by hand.")
		return
	}

	printDraft(d.out, result)
	if result.Draft.Confidence < lowConfidence {
		fmt.Fprintln(d.out, "\nWARNING: Low confidence draft.")
	}

	choice := strings.ToLower(d.readLine("\nRecord this sale? (y/n): "))
	if choice != "y" && choice != "yes" {
		fmt.Fprintln(d.out, "Sale cancelled.")
		return
	}
	d.record(result.Sale)
}

func (d *desk) record(req app.SaleRequest) {
	res, err := d.svc.CreateSale(d.ctx, req)
	if err != nil {
		var reqErr *app.RequestError
		if errors.As(err, &reqErr) {
			for field, msg := range reqErr.Fields {
				fmt.Fprintf(d.out, "  %s: %s\n", field, msg)
			}
		}
		fmt.Fprintf(d.out, "Sale FAILED: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Sale RECORDED: %s  total %s  remaining %s (%s)\n",
		res.Sale.InvoiceNumber, res.Sale.Total.StringFixed(2), res.Sale.Remaining.StringFixed(2), res.Sale.Status)
}
