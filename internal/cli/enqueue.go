package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/txn"
	"github.com/xraph/jobstore/worker"
)

var (
	enqueueQueue   string
	enqueueMessage string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a built-in log job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger := loadConfig()
		st, err := openStorage(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		inv, err := logJob(logger).Invocation(enqueueMessage)
		if err != nil {
			return err
		}
		jobID, err := enqueueJob(cmd.Context(), st.Connection(), inv, enqueueQueue)
		if err != nil {
			return err
		}
		fmt.Println(jobID)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueQueue, "queue", worker.DefaultQueue, "target queue")
	enqueueCmd.Flags().StringVar(&enqueueMessage, "message", "hello", "message the job logs")
}

// jobCreator is the part of a storage connection that enqueueJob uses.
type jobCreator interface {
	CreateExpiredJob(ctx context.Context, inv *job.Invocation, params map[string]string, createdAt time.Time, expireIn time.Duration) (string, error)
	CreateWriteTransaction() *txn.Transaction
}

// enqueueJob creates a job, moves it to Enqueued and puts it on queue.
func enqueueJob(ctx context.Context, conn jobCreator, inv *job.Invocation, queue string) (string, error) {
	now := time.Now().UTC()
	// The job expires unless the enqueue transaction commits.
	jobID, err := conn.CreateExpiredJob(ctx, inv, nil, now, 24*time.Hour)
	if err != nil {
		return "", err
	}

	tx := conn.CreateWriteTransaction()
	if err := errors.Join(
		tx.SetJobState(jobID, job.State{
			Name:      job.StateEnqueued,
			Data:      map[string]string{"Queue": queue, "EnqueuedAt": strconv.FormatInt(now.UnixMilli(), 10)},
			CreatedAt: now,
		}),
		tx.AddToQueue(queue, jobID),
		tx.PersistJob(jobID),
	); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return jobID, nil
}
