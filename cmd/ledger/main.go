package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/app"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/client"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/dal"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/ledger"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
)

var logger = diag.CreateLogger()

var cliArgs struct {
	cmd     string
	owner   string
	account string
	amount  string
	payee   string
	url     string
}

func init() {
	flag.StringVar(&cliArgs.cmd, "cmd", "", "Command to run. Available commands: open, show, credit, debit, pay")
	flag.StringVar(&cliArgs.owner, "owner", "", "Owner of a new account (open)")
	flag.StringVar(&cliArgs.account, "account", "", "Account number, NNN-NNN (show, credit, debit, pay)")
	flag.StringVar(&cliArgs.amount, "amount", "", "Transaction amount (credit, debit, pay)")
	flag.StringVar(&cliArgs.payee, "payee", "", "Phone bill payee (pay)")
	flag.StringVar(&cliArgs.url, "url", "", "Base url of a ledger server. Local storage is used if not set")

	flag.Parse()
}

func showHelpAndExit() {
	flag.PrintDefaults()
	os.Exit(1)
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func parseAmount() decimal.Decimal {
	amount, err := decimal.NewFromString(cliArgs.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid amount %q: %v\n", cliArgs.amount, err)
		showHelpAndExit()
	}
	return amount
}

func run(ctx context.Context, svc ledger.Service) error {
	switch cliArgs.cmd {
	case "open":
		if cliArgs.owner == "" {
			showHelpAndExit()
		}
		acc, err := svc.OpenAccount(ctx, cliArgs.owner)
		if err != nil {
			return err
		}
		return printJSON(acc)
	case "show":
		acc, err := svc.GetAccount(ctx, cliArgs.account)
		if err != nil {
			return err
		}
		return printJSON(acc)
	case "credit", "debit", "pay":
		amount := parseAmount()
		var receipt *ledger.Receipt
		var err error
		switch cliArgs.cmd {
		case "credit":
			receipt, err = svc.Credit(ctx, cliArgs.account, amount)
		case "debit":
			receipt, err = svc.Debit(ctx, cliArgs.account, amount)
		default:
			receipt, err = svc.PayBill(ctx, cliArgs.account, amount, cliArgs.payee)
		}
		if err != nil {
			return err
		}
		return printJSON(receipt)
	}
	showHelpAndExit()
	return nil
}

func main() {
	if cliArgs.cmd == "" {
		showHelpAndExit()
	}
	ctx := context.Background()

	appCfg, err := app.LoadConfig()
	if err != nil {
		logger.WithError(err).Error(ctx, "Failed to load app config")
		os.Exit(1)
	}

	diag.SetupLoggingSystem(func(setup diag.LoggingSystemSetup) {
		setup.SetLogMode(appCfg.Log.Mode)
		setup.SetLogLevel(appCfg.Log.Level)
	})

	if cliArgs.url != "" {
		if err := run(ctx, client.NewLedgerClient(cliArgs.url)); err != nil {
			logger.WithError(err).Error(ctx, "Failed to run %v", cliArgs.cmd)
			os.Exit(1)
		}
		return
	}

	injector := app.BootstrapServices(ctx, appCfg)
	if err := injector(func(storage dal.Storage, svc ledger.Service) error {
		defer storage.Close()
		return run(ctx, svc)
	}); err != nil {
		logger.WithError(err).Error(ctx, "Failed to run %v", cliArgs.cmd)
		os.Exit(1)
	}
}
