package threadpool

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDispatchFIFO(t *testing.T) {
	d := NewDispatch()
	d.Attach()

	var got []int
	for i := range 5 {
		if err := d.Send(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	d.Close()

	for {
		job, ok := d.Receive()
		if !ok {
			break
		}
		job()
	}

	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("receive order mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchReceiveBlocksUntilSend(t *testing.T) {
	d := NewDispatch()
	d.Attach()

	received := make(chan Job)
	go func() {
		job, _ := d.Receive()
		received <- job
	}()

	select {
	case <-received:
		t.Fatal("Receive returned before anything was sent")
	case <-time.After(20 * time.Millisecond):
	}

	if err := d.Send(func() {}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case job := <-received:
		if job == nil {
			t.Error("expected a job")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Receive")
	}
}

func TestDispatchCloseWakesReceivers(t *testing.T) {
	d := NewDispatch()
	const receivers = 3

	var wg sync.WaitGroup
	for range receivers {
		d.Attach()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := d.Receive(); ok {
				t.Error("expected closed signal")
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	d.Close()
	d.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receivers still blocked after Close")
	}
}

func TestDispatchSendErrors(t *testing.T) {
	d := NewDispatch()

	if err := d.Send(func() {}); !errors.Is(err, ErrNoReceivers) {
		t.Errorf("expected ErrNoReceivers without receivers, got %v", err)
	}

	d.Attach()
	if err := d.Send(func() {}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	d.Detach()
	d.Detach()
	if d.Receivers() != 0 {
		t.Errorf("expected 0 receivers, got %d", d.Receivers())
	}
	if err := d.Send(func() {}); !errors.Is(err, ErrNoReceivers) {
		t.Errorf("expected ErrNoReceivers after detach, got %v", err)
	}

	d.Attach()
	d.Close()
	if err := d.Send(func() {}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("expected ErrSenderClosed, got %v", err)
	}
}

func TestDispatchExclusiveHandoff(t *testing.T) {
	d := NewDispatch()
	const (
		receivers = 4
		jobs      = 1000
	)

	var (
		mu  sync.Mutex
		ids []int
		wg  sync.WaitGroup
	)
	for range receivers {
		d.Attach()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := d.Receive()
				if !ok {
					return
				}
				job()
			}
		}()
	}

	for i := range jobs {
		if err := d.Send(func() {
			mu.Lock()
			ids = append(ids, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	d.Close()
	wg.Wait()

	if d.Len() != 0 {
		t.Errorf("expected empty queue, got %d", d.Len())
	}

	sort.Ints(ids)
	want := make([]int, jobs)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("delivered ids mismatch (-want +got):\n%s", diff)
	}
}
