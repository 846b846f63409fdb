package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casavisita/platform/internal/directory"
	"github.com/casavisita/platform/internal/notify"
)

type fakeWorkerStore struct {
	expired []Reminder
	deleted []int64
}

func (f *fakeWorkerStore) ListExpired(_ context.Context, _ time.Time) ([]Reminder, error) {
	return f.expired, nil
}

func (f *fakeWorkerStore) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeWorkerDirectory struct{}

func (fakeWorkerDirectory) AgencyByID(_ context.Context, id int64) (*directory.Agency, error) {
	return &directory.Agency{ID: id, Name: "Horizon Realty", Email: "info@horizon.example"}, nil
}

func (fakeWorkerDirectory) AgentByID(_ context.Context, id int64) (*directory.Agent, error) {
	return &directory.Agent{ID: id, Name: "Alice", Email: "alice@horizon.example"}, nil
}

func (fakeWorkerDirectory) ResidenceByID(_ context.Context, id, agencyID int64) (*directory.Residence, error) {
	return &directory.Residence{ID: id, AgencyID: agencyID, Name: "Villa Aurora",
		OwnerName: "Marco", OwnerEmail: "marco@example.com"}, nil
}

type fakeReminderNotifier struct {
	clientVisits []notify.Visit
	agentVisits  []notify.Visit
	clientErr    error
}

func (f *fakeReminderNotifier) SendReminderClient(_ context.Context, v notify.Visit, _, _ string) error {
	if f.clientErr != nil {
		return f.clientErr
	}
	f.clientVisits = append(f.clientVisits, v)
	return nil
}

func (f *fakeReminderNotifier) SendReminderAgentOwner(_ context.Context, v notify.Visit) error {
	f.agentVisits = append(f.agentVisits, v)
	return nil
}

func emailReminder(t *testing.T, id int64) Reminder {
	t.Helper()
	raw, err := json.Marshal(EmailDispatchConfig{
		AppointmentID: 42, AgencyID: 5, ResidenceID: 10, AgentID: 7,
		ClientName: "Dana Reed", ClientEmail: "dana@example.com",
		Date: "06-03-2026", Hour: 10.5,
		ConfirmToken: "tok-c", CancelToken: "tok-x",
	})
	require.NoError(t, err)
	return Reminder{ID: id, Name: "appointment-client-reminder", Case: CaseDispatchEmail, Config: raw}
}

func TestWorkerProcessDueDispatchesAndDeletes(t *testing.T) {
	store := &fakeWorkerStore{expired: []Reminder{emailReminder(t, 1)}}
	notifier := &fakeReminderNotifier{}
	worker := NewWorker(store, fakeWorkerDirectory{}, notifier, nil, nil)

	n, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, notifier.clientVisits, 1)
	assert.Equal(t, "dana@example.com", notifier.clientVisits[0].ClientEmail)
	assert.Equal(t, "Villa Aurora", notifier.clientVisits[0].ResidenceName)
	require.Len(t, notifier.agentVisits, 1)
	assert.Equal(t, []int64{1}, store.deleted, "consumed reminder is deleted")
}

func TestWorkerSwallowsDispatchFailure(t *testing.T) {
	store := &fakeWorkerStore{expired: []Reminder{emailReminder(t, 1)}}
	notifier := &fakeReminderNotifier{clientErr: errors.New("smtp down")}
	worker := NewWorker(store, fakeWorkerDirectory{}, notifier, nil, nil)

	n, err := worker.ProcessDue(context.Background())
	require.NoError(t, err, "dispatch failure never fails the sweep")
	assert.Equal(t, 0, n)
	assert.Equal(t, []int64{1}, store.deleted, "failed reminder is still consumed, not retried")
}

func TestWorkerDropsUnknownCase(t *testing.T) {
	store := &fakeWorkerStore{expired: []Reminder{{ID: 9, Case: "DISPATCH_CARRIER_PIGEON", Config: []byte(`{}`)}}}
	notifier := &fakeReminderNotifier{}
	worker := NewWorker(store, fakeWorkerDirectory{}, notifier, nil, nil)

	n, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, notifier.clientVisits)
	assert.Equal(t, []int64{9}, store.deleted)
}
