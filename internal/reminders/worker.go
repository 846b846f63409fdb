package reminders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/casavisita/platform/internal/directory"
	"github.com/casavisita/platform/internal/notify"
	"github.com/casavisita/platform/internal/observability/metrics"
	"github.com/casavisita/platform/pkg/logging"
)

// WorkerStore is the queue surface the worker drains.
type WorkerStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]Reminder, error)
	Delete(ctx context.Context, id int64) error
}

// Directory re-resolves the parties named in a reminder payload.
type Directory interface {
	AgencyByID(ctx context.Context, id int64) (*directory.Agency, error)
	AgentByID(ctx context.Context, id int64) (*directory.Agent, error)
	ResidenceByID(ctx context.Context, id, agencyID int64) (*directory.Residence, error)
}

// Notifier sends the reminder mails.
type Notifier interface {
	SendReminderClient(ctx context.Context, v notify.Visit, confirmToken, cancelToken string) error
	SendReminderAgentOwner(ctx context.Context, v notify.Visit) error
}

// Worker drains expired reminders on a fixed cadence.
type Worker struct {
	store     WorkerStore
	directory Directory
	notifier  Notifier
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewWorker(store WorkerStore, dir Directory, notifier Notifier, m *metrics.BookingMetrics, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		store:     store,
		directory: dir,
		notifier:  notifier,
		metrics:   m,
		logger:    logger.Component("reminder-worker"),
		now:       time.Now,
	}
}

// ProcessDue dispatches every expired reminder and deletes its row. Dispatch
// failures are logged and counted, never retried: a reminder fires once or
// is lost.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	expired, err := w.store.ListExpired(ctx, w.now())
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, reminder := range expired {
		switch reminder.Case {
		case CaseDispatchEmail:
			if err := w.dispatchEmail(ctx, reminder); err != nil {
				w.logger.Error("reminder dispatch failed", "reminder_id", reminder.ID, "error", err)
				w.metrics.ObserveNotifyFailure("reminder")
			} else {
				dispatched++
				w.metrics.ObserveReminderDispatched()
			}
		default:
			w.logger.Warn("unknown reminder case, dropping", "reminder_id", reminder.ID, "case", reminder.Case)
		}

		if err := w.store.Delete(ctx, reminder.ID); err != nil {
			w.logger.Error("reminder delete failed", "reminder_id", reminder.ID, "error", err)
		}
	}
	return dispatched, nil
}

func (w *Worker) dispatchEmail(ctx context.Context, reminder Reminder) error {
	var cfg EmailDispatchConfig
	if err := json.Unmarshal(reminder.Config, &cfg); err != nil {
		return err
	}

	agency, err := w.directory.AgencyByID(ctx, cfg.AgencyID)
	if err != nil {
		return err
	}
	agent, err := w.directory.AgentByID(ctx, cfg.AgentID)
	if err != nil {
		return err
	}
	residence, err := w.directory.ResidenceByID(ctx, cfg.ResidenceID, cfg.AgencyID)
	if err != nil {
		return err
	}

	visit := notify.Visit{
		ClientName:    cfg.ClientName,
		ClientEmail:   cfg.ClientEmail,
		AgentName:     agent.Name,
		AgentEmail:    agent.Email,
		OwnerName:     residence.OwnerName,
		OwnerEmail:    residence.OwnerEmail,
		AgencyName:    agency.Name,
		AgencyEmail:   agency.Email,
		ResidenceName: residence.Name,
		Date:          cfg.Date,
		Hour:          cfg.Hour,
	}

	if err := w.notifier.SendReminderClient(ctx, visit, cfg.ConfirmToken, cfg.CancelToken); err != nil {
		return err
	}
	return w.notifier.SendReminderAgentOwner(ctx, visit)
}
