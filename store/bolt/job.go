package bolt

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/job"
)

// InsertJob persists j under the next job sequence number and sets j.ID.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.job)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		m := toJobModel(seq, j)
		if err := s.putJob(tx, b, m, ""); err != nil {
			return err
		}
		j.ID = job.FormatID(seq)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("jobstore/bolt: insert job: %w", err)
	}
	return j.ID, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*job.Job, error) {
	seq, err := job.ParseID(jobID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var j *job.Job
	err = s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.job)
		if err != nil {
			return err
		}
		m, err := getJob(b, seq)
		if err != nil {
			return err
		}
		j = fromJobModel(m)
		return nil
	})
	if err != nil {
		return nil, wrapJobErr("get job", err)
	}
	return j, nil
}

// UpdateJob applies fn to the stored job inside one write transaction.
func (s *Store) UpdateJob(ctx context.Context, jobID string, fn func(*job.Job) error) error {
	seq, err := job.ParseID(jobID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.job)
		if err != nil {
			return err
		}
		m, err := getJob(b, seq)
		if err != nil {
			return err
		}
		prevState := m.StateName

		j := fromJobModel(m)
		if err := fn(j); err != nil {
			return err
		}
		return s.putJob(tx, b, toJobModel(seq, j), prevState)
	})
	if err != nil {
		return wrapJobErr("update job", err)
	}
	return nil
}

func getJob(b *bbolt.Bucket, seq uint64) (*jobModel, error) {
	v := b.Get(u64(seq))
	if v == nil {
		return nil, jobstore.ErrJobNotFound
	}
	var m jobModel
	if err := decode(v, &m); err != nil {
		return nil, fmt.Errorf("decode job %d: %w", seq, err)
	}
	return &m, nil
}

// putJob writes m and moves its state index entry from prevState.
func (s *Store) putJob(tx *bbolt.Tx, b *bbolt.Bucket, m *jobModel, prevState string) error {
	data, err := encode(m)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := b.Put(u64(m.Seq), data); err != nil {
		return err
	}
	if prevState == m.StateName {
		return nil
	}

	idx, err := bucket(tx, s.names.jobState)
	if err != nil {
		return err
	}
	if prevState != "" {
		if err := idx.Delete(compositeKey(prevState, u64(m.Seq))); err != nil {
			return err
		}
	}
	if m.StateName != "" {
		return idx.Put(compositeKey(m.StateName, u64(m.Seq)), nil)
	}
	return nil
}

// deleteJob removes a job and its state index entry.
func (s *Store) deleteJob(tx *bbolt.Tx, b *bbolt.Bucket, m *jobModel) error {
	if err := b.Delete(u64(m.Seq)); err != nil {
		return err
	}
	if m.StateName == "" {
		return nil
	}
	idx, err := bucket(tx, s.names.jobState)
	if err != nil {
		return err
	}
	return idx.Delete(compositeKey(m.StateName, u64(m.Seq)))
}

// wrapJobErr keeps sentinel errors bare so callers can match them.
func wrapJobErr(op string, err error) error {
	if errors.Is(err, jobstore.ErrJobNotFound) {
		return jobstore.ErrJobNotFound
	}
	return fmt.Errorf("jobstore/bolt: %s: %w", op, err)
}
