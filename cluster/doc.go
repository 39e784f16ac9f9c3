// Package cluster tracks the processing servers that share a store.
//
// Each server announces itself with its worker count, the queues it polls
// and its start time, then heartbeats periodically. Servers that stop
// heartbeating are removed by whoever calls RemoveServersBefore with a
// cutoff, typically a server-watchdog loop in the processing framework.
package cluster
