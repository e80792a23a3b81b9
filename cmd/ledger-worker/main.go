// Command ledger-worker runs interest accrual and reminder dispatch in one
// process.
package main

import (
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/worker"
)

func main() {
	cli.RunWorker("ledger-worker", func(b *backend.Backend, cfg *config.Config) []worker.Job {
		return []worker.Job{
			worker.InterestJob(b.Interest, cfg.InterestInterval),
			worker.ReminderJob(b.Notifications, cfg.ReminderInterval),
		}
	})
}
