// Command reminder-worker publishes the daily logging reminders that are due.
package main

import (
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/worker"
)

func main() {
	cli.RunWorker("reminder-worker", func(b *backend.Backend, cfg *config.Config) []worker.Job {
		return []worker.Job{worker.ReminderJob(b.Notifications, cfg.ReminderInterval)}
	})
}
