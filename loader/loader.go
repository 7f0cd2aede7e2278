// Package loader implements the threaded bulk loader: N producer
// goroutines each pop archive jobs off a shared ArchiveQueue and stream
// decoded records onto a channel; exactly one consumer, running on the
// calling goroutine, drains that channel into the database within a
// single transaction. The consumer side uses an explicit non-blocking
// select with a 1ms backoff when the channel is empty rather than a
// blocking range-until-close; it exits once the channel is closed and
// drained, or on the first Collect error.
package loader

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rerupp/weatherhist/internal/logging"
	"github.com/rerupp/weatherhist/werrors"
)

// Producer gathers every record out of one archive job and emits it via
// send. A producer error is logged and terminates only that producer
//; it does not abort the run.
type Producer[T any] interface {
	Gather(job ArchiveJob, send func(T)) error
}

// Consumer receives each record in arrival order and persists it. A
// Consumer error aborts the whole run; the caller is expected to have
// wrapped Run in a transaction it rolls back on error.
type Consumer[T any] interface {
	Collect(msg T) error
}

// ConsumerFunc adapts a plain function to Consumer, letting each database
// backend supply its own row-insertion closure without a named type.
type ConsumerFunc[T any] func(T) error

func (f ConsumerFunc[T]) Collect(msg T) error { return f(msg) }

const receiveBackoff = time.Millisecond

// Run drives the full pipeline to completion: it starts workers producer
// goroutines, each draining q and calling
// producer.Gather for every popped job; the calling goroutine runs the
// sole consumer loop, which exits cleanly once every producer has finished
// and the channel is drained. It returns the first error raised by
// consumer.Collect, or nil if every record was collected successfully.
func Run[T any](q *ArchiveQueue, workers int, producer Producer[T], consumer Consumer[T]) error {
	if workers < 1 {
		workers = 1
	}
	if workers > 16 {
		workers = 16
	}
	log := logging.With("loader")

	ch := make(chan T, workers*4)
	abort := make(chan struct{})
	done := make(chan struct{})
	go runProducers(q, workers, producer, ch, abort, done, log)

	// The caller-owned sender handle is represented by done/ch themselves:
	// runProducers closes ch only after every worker has returned, so the
	// consumer below sees disconnection exactly when all gathering work is
	// finished.
	err := runConsumer(ch, consumer)
	if err != nil {
		// Stop producers from blocking on a send nobody will ever drain
		// again; already-popped jobs finish gathering but their records are
		// discarded rather than deadlocking on ch.
		close(abort)
	}
	<-done
	return err
}

func runProducers[T any](q *ArchiveQueue, workers int, producer Producer[T], ch chan<- T, abort <-chan struct{}, done chan<- struct{}, log *logrus.Entry) {
	results := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func(worker int) {
			defer func() { results <- struct{}{} }()
			send := func(v T) {
				select {
				case ch <- v:
				case <-abort:
				}
			}
			for {
				select {
				case <-abort:
					return
				default:
				}
				job, ok := q.pop()
				if !ok {
					return
				}
				if err := producer.Gather(job, send); err != nil {
					log.WithError(err).WithField("alias", job.Alias).WithField("worker", worker).
						Warn("producer failed gathering archive, skipping")
				}
			}
		}(i)
	}
	for i := 0; i < workers; i++ {
		<-results
	}
	close(ch)
	close(done)
}

// runConsumer implements the single consumer's receive loop: a
// non-blocking read with a 1ms backoff when the channel is momentarily
// empty, exiting once the channel is closed and drained.
func runConsumer[T any](ch <-chan T, consumer Consumer[T]) error {
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := consumer.Collect(msg); err != nil {
				return werrors.Wrap(werrors.ErrConcurrency, "loader.Run", "consumer", err)
			}
		default:
			time.Sleep(receiveBackoff)
		}
	}
}
