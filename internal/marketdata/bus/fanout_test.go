package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"tickstream/internal/model"
)

func batchAt(ts int64) model.TickBatch {
	return model.TickBatch{TS: ts, Quotes: []model.Quote{{Symbol: "AAPL", TS: ts, Price: 150}}}
}

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe("hub")
	out2 := fo.Subscribe("redis")

	input := make(chan model.TickBatch, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- batchAt(1000)

	for name, out := range map[string]<-chan model.TickBatch{"out1": out1, "out2": out2} {
		select {
		case b := <-out:
			if b.TS != 1000 || b.Quotes[0].Symbol != "AAPL" {
				t.Errorf("%s: unexpected batch %+v", name, b)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: timed out waiting for batch", name)
		}
	}
}

func TestFanOut_SlowSubscriberDropsWithoutBlocking(t *testing.T) {
	fo := New(1)
	fast := fo.Subscribe("fast")
	_ = fo.Subscribe("slow") // never drained

	var mu sync.Mutex
	drops := map[string]int{}
	fo.OnDrop = func(name string) {
		mu.Lock()
		drops[name]++
		mu.Unlock()
	}

	input := make(chan model.TickBatch)
	done := make(chan struct{})
	go func() {
		fo.Run(context.Background(), input)
		close(done)
	}()

	for i := int64(1); i <= 5; i++ {
		input <- batchAt(i)
		select {
		case b := <-fast:
			if b.TS != i {
				t.Fatalf("fast got TS=%d, want %d", b.TS, i)
			}
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber starved at batch %d", i)
		}
	}
	close(input)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if drops["slow"] != 4 {
		t.Errorf("slow drops = %d, want 4", drops["slow"])
	}
	if drops["fast"] != 0 {
		t.Errorf("fast drops = %d, want 0", drops["fast"])
	}
}

func TestFanOut_ClosesOutputsOnInputClose(t *testing.T) {
	fo := New(1)
	out := fo.Subscribe("hub")
	input := make(chan model.TickBatch)
	close(input)

	fo.Run(context.Background(), input)

	if _, ok := <-out; ok {
		t.Fatal("expected output channel to be closed")
	}
}
