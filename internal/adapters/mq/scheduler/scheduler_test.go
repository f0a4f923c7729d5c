package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/adapters/mq/scheduler"
	"github.com/okian/podium/internal/domain/model"
	logging "github.com/okian/podium/pkg/logger"
)

type recordingSubmitter struct {
	mu       sync.Mutex
	requests []model.RefreshRequest
	pending  map[string]bool
	err      error
}

func newRecordingSubmitter() *recordingSubmitter {
	return &recordingSubmitter{pending: map[string]bool{}}
}

func (r *recordingSubmitter) Submit(_ context.Context, req model.RefreshRequest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.pending[req.Key()] {
		return false, nil
	}
	r.pending[req.Key()] = true
	r.requests = append(r.requests, req)
	return true, nil
}

func (r *recordingSubmitter) drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = map[string]bool{}
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func TestScheduler(t *testing.T) {
	convey.Convey("Given a scheduler with two tournaments", t, func() {
		_ = logging.Init()

		sub := newRecordingSubmitter()
		fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		entries := []scheduler.Entry{
			{TournamentID: "spring-cup", FetchLive: true},
			{TournamentID: "winter-open", Round: "2"},
		}
		s := scheduler.New(sub, entries,
			scheduler.WithInterval(10*time.Millisecond),
			scheduler.WithClock(func() time.Time { return fixed }),
		)

		convey.Convey("When ticking once", func() {
			n := s.Tick(context.Background())

			convey.Convey("Then every tournament is submitted", func() {
				convey.So(n, convey.ShouldEqual, 2)
				convey.So(sub.requests[0].TournamentID, convey.ShouldEqual, "spring-cup")
				convey.So(sub.requests[0].FetchLive, convey.ShouldBeTrue)
				convey.So(sub.requests[1].Round, convey.ShouldEqual, "2")
				convey.So(sub.requests[0].Source, convey.ShouldEqual, "scheduler")
				convey.So(sub.requests[0].RequestedAt, convey.ShouldEqual, fixed)
				convey.So(sub.requests[0].RequestID, convey.ShouldNotEqual, sub.requests[1].RequestID)
			})

			convey.Convey("Then a second tick while pending is a no-op", func() {
				convey.So(s.Tick(context.Background()), convey.ShouldEqual, 0)
				sub.drain()
				convey.So(s.Tick(context.Background()), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the submitter is full", func() {
			sub.err = queue.ErrQueueFull

			convey.Convey("Then nothing is accepted", func() {
				convey.So(s.Tick(context.Background()), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When serving", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Serve(ctx) }()

			deadline := time.Now().Add(2 * time.Second)
			for sub.count() < 2 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			sub.drain()
			for sub.count() < 4 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			cancel()

			convey.Convey("Then it submits on start and on each tick and stops cleanly", func() {
				convey.So(sub.count(), convey.ShouldBeGreaterThanOrEqualTo, 4)
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(time.Second):
					convey.So("serve did not return", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the queue has closed", func() {
			sub.err = queue.ErrQueueClosed
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Serve(ctx) }()
			time.Sleep(30 * time.Millisecond)
			cancel()

			convey.Convey("Then Serve idles until cancelled", func() {
				err := <-done
				convey.So(errors.Is(err, queue.ErrQueueClosed), convey.ShouldBeFalse)
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}
