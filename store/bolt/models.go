package bolt

import (
	"time"

	"github.com/xraph/jobstore/cluster"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/queue"
)

// ── Job model ─────────────────────────────────────────────────────

type stateModel struct {
	Name      string            `bson:"name"`
	Reason    string            `bson:"reason,omitempty"`
	Data      map[string]string `bson:"data,omitempty"`
	CreatedAt time.Time         `bson:"created_at"`
}

type jobModel struct {
	Seq            uint64            `bson:"_id"`
	InvocationData []byte            `bson:"invocation_data"`
	Encoding       string            `bson:"encoding"`
	Arguments      string            `bson:"arguments"`
	Parameters     map[string]string `bson:"parameters,omitempty"`
	StateName      string            `bson:"state_name,omitempty"`
	StateHistory   []stateModel      `bson:"state_history,omitempty"`
	CreatedAt      time.Time         `bson:"created_at"`
	ExpireAt       *time.Time        `bson:"expire_at,omitempty"`
}

func toJobModel(seq uint64, j *job.Job) *jobModel {
	m := &jobModel{
		Seq:            seq,
		InvocationData: j.InvocationData,
		Encoding:       j.Encoding,
		Arguments:      j.Arguments,
		Parameters:     j.Parameters,
		StateName:      j.StateName,
		CreatedAt:      j.CreatedAt.UTC(),
		ExpireAt:       utcPtr(j.ExpireAt),
	}
	if len(j.StateHistory) > 0 {
		m.StateHistory = make([]stateModel, len(j.StateHistory))
		for i, s := range j.StateHistory {
			m.StateHistory[i] = stateModel{
				Name:      s.Name,
				Reason:    s.Reason,
				Data:      s.Data,
				CreatedAt: s.CreatedAt.UTC(),
			}
		}
	}
	return m
}

func fromJobModel(m *jobModel) *job.Job {
	j := &job.Job{
		ID:             job.FormatID(m.Seq),
		InvocationData: m.InvocationData,
		Encoding:       m.Encoding,
		Arguments:      m.Arguments,
		Parameters:     m.Parameters,
		StateName:      m.StateName,
		CreatedAt:      m.CreatedAt,
		ExpireAt:       m.ExpireAt,
	}
	if len(m.StateHistory) > 0 {
		j.StateHistory = make([]job.State, len(m.StateHistory))
		for i, s := range m.StateHistory {
			j.StateHistory[i] = job.State{
				Name:      s.Name,
				Reason:    s.Reason,
				Data:      s.Data,
				CreatedAt: s.CreatedAt,
			}
		}
	}
	return j
}

// ── Queue entry model ────────────────────────────────────────────

type queueEntryModel struct {
	Seq       uint64     `bson:"_id"`
	JobID     string     `bson:"job_id"`
	Queue     string     `bson:"queue"`
	FetchedAt *time.Time `bson:"fetched_at,omitempty"`
}

func fromQueueEntryModel(m *queueEntryModel) *queue.Entry {
	return &queue.Entry{
		ID:        job.FormatID(m.Seq),
		JobID:     m.JobID,
		Queue:     m.Queue,
		FetchedAt: m.FetchedAt,
	}
}

// ── Key-value models ─────────────────────────────────────────────

type counterModel struct {
	Key      string     `bson:"key"`
	Value    int64      `bson:"value"`
	ExpireAt *time.Time `bson:"expire_at,omitempty"`
}

func toCounterModel(c kv.Counter) *counterModel {
	return &counterModel{Key: c.Key, Value: c.Value, ExpireAt: utcPtr(c.ExpireAt)}
}

func fromCounterModel(m *counterModel) kv.Counter {
	return kv.Counter{Key: m.Key, Value: m.Value, ExpireAt: m.ExpireAt}
}

type setModel struct {
	Seq      uint64     `bson:"seq"`
	Key      string     `bson:"key"`
	Value    string     `bson:"value"`
	Score    float64    `bson:"score"`
	ExpireAt *time.Time `bson:"expire_at,omitempty"`
}

func fromSetModel(m *setModel) kv.SetEntry {
	return kv.SetEntry{Key: m.Key, Value: m.Value, Score: m.Score, ExpireAt: m.ExpireAt}
}

type listModel struct {
	Key      string     `bson:"key"`
	Value    string     `bson:"value"`
	ExpireAt *time.Time `bson:"expire_at,omitempty"`
}

func fromListModel(m *listModel) kv.ListEntry {
	return kv.ListEntry{Key: m.Key, Value: m.Value, ExpireAt: m.ExpireAt}
}

type hashModel struct {
	Seq      uint64     `bson:"seq"`
	Key      string     `bson:"key"`
	Field    string     `bson:"field"`
	Value    string     `bson:"value"`
	ExpireAt *time.Time `bson:"expire_at,omitempty"`
}

func fromHashModel(m *hashModel) kv.HashEntry {
	return kv.HashEntry{Key: m.Key, Field: m.Field, Value: m.Value, ExpireAt: m.ExpireAt}
}

// expiryModel decodes only the expiry of any document.
type expiryModel struct {
	ExpireAt *time.Time `bson:"expire_at,omitempty"`
}

// ── Server model ─────────────────────────────────────────────────

type serverModel struct {
	ID            string    `bson:"_id"`
	WorkerCount   int       `bson:"worker_count"`
	Queues        []string  `bson:"queues"`
	StartedAt     time.Time `bson:"started_at"`
	LastHeartbeat time.Time `bson:"last_heartbeat"`
}

func toServerModel(s *cluster.Server) *serverModel {
	return &serverModel{
		ID:            s.ID,
		WorkerCount:   s.Info.WorkerCount,
		Queues:        s.Info.Queues,
		StartedAt:     s.Info.StartedAt.UTC(),
		LastHeartbeat: s.LastHeartbeat.UTC(),
	}
}

func fromServerModel(m *serverModel) *cluster.Server {
	return &cluster.Server{
		ID: m.ID,
		Info: cluster.Info{
			WorkerCount: m.WorkerCount,
			Queues:      m.Queues,
			StartedAt:   m.StartedAt,
		},
		LastHeartbeat: m.LastHeartbeat,
	}
}

// ── Lock model ───────────────────────────────────────────────────

type lockModel struct {
	Resource string    `bson:"_id"`
	Owner    string    `bson:"owner"`
	ExpireAt time.Time `bson:"expire_at"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
