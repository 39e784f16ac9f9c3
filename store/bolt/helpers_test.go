package bolt_test

import (
	"time"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/cluster"
)

func jobNotFound() error { return jobstore.ErrJobNotFound }

func serverAt(id string, at time.Time) *cluster.Server {
	return &cluster.Server{
		ID: id,
		Info: cluster.Info{
			WorkerCount: 4,
			Queues:      []string{"default"},
			StartedAt:   at,
		},
		LastHeartbeat: at,
	}
}
