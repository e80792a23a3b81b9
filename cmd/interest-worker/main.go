// Command interest-worker posts monthly interest on due savings accounts.
package main

import (
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/worker"
)

func main() {
	cli.RunWorker("interest-worker", func(b *backend.Backend, cfg *config.Config) []worker.Job {
		return []worker.Job{worker.InterestJob(b.Interest, cfg.InterestInterval)}
	})
}
