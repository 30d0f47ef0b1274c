package pipeline

import (
	"fmt"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"photosort/internal/decode"
)

func fakeHandle() *decode.ImageHandle {
	return decode.NewHandle(image.NewRGBA(image.Rect(0, 0, 4, 4)))
}

func instantDecode(string, int) (*decode.ImageHandle, error) {
	return fakeHandle(), nil
}

func TestSchedulerRequiresDecode(t *testing.T) {
	if _, err := NewScheduler(Config{}); err == nil {
		t.Fatal("expected error when Decode is nil")
	}
}

func TestSubmitStampsCurrentGeneration(t *testing.T) {
	s, err := NewScheduler(Config{ThumbnailWorkers: 1, PreviewWorkers: 1, Decode: instantDecode})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	defer s.Close()

	req, err := s.Submit("/a.jpg", 160, ClassThumbnail)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if req.Generation() != s.Generation() {
		t.Errorf("stamped generation %d, current %d", req.Generation(), s.Generation())
	}

	want := s.Generation() + 1
	if got := s.BumpGeneration(); got != want {
		t.Errorf("BumpGeneration = %d, want %d", got, want)
	}

	req2, err := s.Submit("/b.jpg", 160, ClassThumbnail)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if req2.Generation() != want {
		t.Errorf("second request stamped %d, want %d", req2.Generation(), want)
	}
}

func TestAllSubmittedDeliveredExactlyOnce(t *testing.T) {
	s, err := NewScheduler(Config{ThumbnailWorkers: 4, PreviewWorkers: 1, Decode: instantDecode})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	const n = 200
	for i := 0; i < n; i++ {
		if _, err := s.Submit(fmt.Sprintf("/photos/%d.jpg", i), 160, ClassThumbnail); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}
	s.Close()

	seen := make(map[string]int)
	for res := range s.Results() {
		if res.Err != nil {
			t.Errorf("unexpected decode error for %s: %v", res.Path, res.Err)
		}
		if res.Handle == nil {
			t.Errorf("nil handle without error for %s", res.Path)
		}
		seen[res.Path]++
	}

	if len(seen) != n {
		t.Fatalf("got %d distinct results, want %d", len(seen), n)
	}
	for path, count := range seen {
		if count != 1 {
			t.Errorf("%s delivered %d times, want exactly once", path, count)
		}
	}
}

func TestBumpDiscardsInFlightResults(t *testing.T) {
	gate := make(chan struct{})
	var gated atomic.Bool
	gated.Store(true)
	dec := func(path string, _ int) (*decode.ImageHandle, error) {
		if gated.Load() {
			<-gate
		}
		return fakeHandle(), nil
	}

	s, err := NewScheduler(Config{ThumbnailWorkers: 1, PreviewWorkers: 1, Decode: dec})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	if _, err := s.Submit("/stale.jpg", 160, ClassThumbnail); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Invalidate while the decode is blocked in flight, then let it finish.
	s.BumpGeneration()
	gated.Store(false)
	close(gate)

	// A fresh request proves the pipeline is still flowing.
	if _, err := s.Submit("/fresh.jpg", 160, ClassThumbnail); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	s.Close()

	for res := range s.Results() {
		if res.Path == "/stale.jpg" {
			t.Error("stale result was delivered despite generation bump")
		}
	}
}

func TestPreviewPoolNotStarvedByThumbnails(t *testing.T) {
	thumbGate := make(chan struct{})
	dec := func(path string, targetMax int) (*decode.ImageHandle, error) {
		if targetMax > 0 {
			<-thumbGate // thumbnail decodes hang until released
		}
		return fakeHandle(), nil
	}

	s, err := NewScheduler(Config{ThumbnailWorkers: 2, PreviewWorkers: 1, Decode: dec})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	defer func() {
		close(thumbGate)
		s.Close()
	}()

	// Saturate the thumbnail pool and its queue.
	for i := 0; i < 50; i++ {
		if _, err := s.Submit(fmt.Sprintf("/thumb/%d.jpg", i), 160, ClassThumbnail); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	if _, err := s.Submit("/big.arw", 0, ClassPreview); err != nil {
		t.Fatalf("preview Submit failed: %v", err)
	}

	select {
	case res := <-s.Results():
		if res.Path != "/big.arw" {
			t.Errorf("first delivered result is %s, want the preview", res.Path)
		}
		if res.Class != ClassPreview {
			t.Errorf("result class %s, want preview", res.Class)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("preview result did not arrive while thumbnail pool was saturated")
	}
}

func TestPreviewSubmitNotBlockedByFullThumbnailQueue(t *testing.T) {
	gate := make(chan struct{})
	dec := func(path string, targetMax int) (*decode.ImageHandle, error) {
		if targetMax > 0 {
			<-gate
		}
		return fakeHandle(), nil
	}

	s, err := NewScheduler(Config{ThumbnailWorkers: 1, PreviewWorkers: 1, QueueDepth: 1, Decode: dec})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range s.Results() {
		}
	}()

	// One decode in flight, one queued: the next thumbnail submit stalls
	// in the channel send.
	if _, err := s.Submit("/t1.jpg", 160, ClassThumbnail); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := s.Submit("/t2.jpg", 160, ClassThumbnail); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	stalled := make(chan struct{})
	go func() {
		defer close(stalled)
		if _, err := s.Submit("/t3.jpg", 160, ClassThumbnail); err != nil {
			t.Errorf("stalled Submit failed: %v", err)
		}
	}()
	time.Sleep(50 * time.Millisecond) // let the submit reach the send

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit("/big.arw", 0, ClassPreview)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("preview Submit failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("preview submit stalled behind a full thumbnail queue")
	}

	close(gate)
	<-stalled
	s.Close()
	<-drained
}

func TestDecodeErrorDeliveredOnce(t *testing.T) {
	dec := func(path string, _ int) (*decode.ImageHandle, error) {
		if path == "/bad.jpg" {
			return nil, fmt.Errorf("simulated decode failure")
		}
		return fakeHandle(), nil
	}

	s, err := NewScheduler(Config{ThumbnailWorkers: 2, PreviewWorkers: 1, Decode: dec})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	if _, err := s.Submit("/bad.jpg", 160, ClassThumbnail); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := s.Submit("/good.jpg", 160, ClassThumbnail); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	s.Close()

	results := make(map[string]Result)
	for res := range s.Results() {
		results[res.Path] = res
	}

	if res := results["/bad.jpg"]; res.Err == nil {
		t.Error("expected error result for /bad.jpg")
	}
	if res := results["/good.jpg"]; res.Err != nil {
		t.Errorf("fault leaked across tasks: %v", res.Err)
	}
}

func TestDecodePanicIsolatedPerTask(t *testing.T) {
	dec := func(path string, _ int) (*decode.ImageHandle, error) {
		if path == "/panic.jpg" {
			panic("pathological file")
		}
		return fakeHandle(), nil
	}

	s, err := NewScheduler(Config{ThumbnailWorkers: 1, PreviewWorkers: 1, Decode: dec})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	if _, err := s.Submit("/panic.jpg", 160, ClassThumbnail); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := s.Submit("/after.jpg", 160, ClassThumbnail); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	s.Close()

	results := make(map[string]Result)
	for res := range s.Results() {
		results[res.Path] = res
	}

	if res := results["/panic.jpg"]; res.Err == nil {
		t.Error("panicking decode should surface as an error result")
	}
	if res, ok := results["/after.jpg"]; !ok || res.Err != nil {
		t.Error("worker should survive a panicking task and process the next one")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	s, err := NewScheduler(Config{ThumbnailWorkers: 1, PreviewWorkers: 1, Decode: instantDecode})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	s.Close()

	if _, err := s.Submit("/late.jpg", 160, ClassThumbnail); err == nil {
		t.Error("expected error submitting on a closed scheduler")
	}
	// Close is idempotent
	s.Close()
}

func TestDefaultThumbnailWorkersBounds(t *testing.T) {
	if got := DefaultThumbnailWorkers(); got < 1 || got > maxThumbnailWorkers {
		t.Errorf("DefaultThumbnailWorkers() = %d, want within [1, %d]", got, maxThumbnailWorkers)
	}
}

func TestDefaultThumbnailWorkersOverride(t *testing.T) {
	t.Setenv("THUMBNAIL_WORKERS", "3")
	if got := DefaultThumbnailWorkers(); got != 3 {
		t.Errorf("DefaultThumbnailWorkers() = %d, want override 3", got)
	}

	t.Setenv("THUMBNAIL_WORKERS", "99")
	if got := DefaultThumbnailWorkers(); got != maxThumbnailWorkers {
		t.Errorf("DefaultThumbnailWorkers() = %d, want cap %d", got, maxThumbnailWorkers)
	}
}
