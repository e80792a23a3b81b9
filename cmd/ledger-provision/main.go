// Command ledger-provision gives one or more users their starting ledger: a
// cash account in DEFAULT_CURRENCY (or -currency), the reserved categories and
// the default reminder setting. Running it twice for a user is harmless.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ledger/internal/cli"
)

func main() {
	currency := flag.String("currency", "", "currency of the cash account (defaults to DEFAULT_CURRENCY)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-currency EUR] user-id...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*currency, *timeout, flag.Args()))
}

func run(currency string, timeout time.Duration, users []string) int {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, "ledger-provision")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	}()

	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = cfg.DefaultCurrency
	}

	failed := 0
	for _, userID := range users {
		if err := res.Backend.Ledger.ProvisionUser(ctx, userID, cur); err != nil {
			logger.Error("Failed to provision user", "user_id", userID, "error", err)
			failed++
			continue
		}
		logger.Info("User provisioned", "user_id", userID, "currency", cur)
	}
	if failed > 0 {
		return 1
	}
	return 0
}
