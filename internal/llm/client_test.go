package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type scriptedBackend struct {
	calls   atomic.Int32
	replies []string
	errs    []error
}

func (b *scriptedBackend) Complete(ctx context.Context, systemPrompt string, content Content) (string, error) {
	i := int(b.calls.Add(1)) - 1
	var err error
	if i < len(b.errs) {
		err = b.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(b.replies) {
		return b.replies[i], nil
	}
	return "", nil
}

func TestGenerate_ReturnsFirstSuccess(t *testing.T) {
	backend := &scriptedBackend{replies: []string{"hello"}}
	c := NewClient(backend, WithBaseDelay(0))

	out := c.Generate(context.Background(), "sys", Text("user"), 3)

	assert.Equal(t, "hello", out)
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	backend := &scriptedBackend{
		errs:    []error{errors.New("boom"), errors.New("boom")},
		replies: []string{"", "", "third time"},
	}
	c := NewClient(backend, WithBaseDelay(0))

	out := c.Generate(context.Background(), "sys", Text("user"), 3)

	assert.Equal(t, "third time", out)
	assert.Equal(t, int32(3), backend.calls.Load())
}

func TestGenerate_PersistentFailureReturnsEmpty(t *testing.T) {
	backend := &scriptedBackend{
		errs: []error{
			&StatusError{Code: 500}, &StatusError{Code: 500}, &StatusError{Code: 500}, &StatusError{Code: 500},
		},
	}
	c := NewClient(backend, WithBaseDelay(0))

	out := c.Generate(context.Background(), "sys", Text("user"), 3)

	assert.Equal(t, "", out)
	assert.Equal(t, int32(3), backend.calls.Load())
}

func TestGenerate_NonPositiveAttemptsUsesDefault(t *testing.T) {
	backend := &scriptedBackend{errs: []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}}
	c := NewClient(backend, WithBaseDelay(0))

	assert.Equal(t, "", c.Generate(context.Background(), "sys", Text("user"), 0))
	assert.Equal(t, int32(DefaultMaxAttempts), backend.calls.Load())
}

func TestGenerate_LinearBackoff(t *testing.T) {
	backend := &scriptedBackend{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	c := NewClient(backend, WithBaseDelay(10*time.Millisecond))

	start := time.Now()
	c.Generate(context.Background(), "sys", Text("user"), 3)

	// 1*base after the first failure, 2*base after the second, nothing after the last.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestGenerate_CancelledContextStopsRetrying(t *testing.T) {
	backend := &scriptedBackend{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	c := NewClient(backend, WithBaseDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	assert.Equal(t, "", c.Generate(ctx, "sys", Text("user"), 3))
	assert.Equal(t, int32(1), backend.calls.Load())
}

type blockingBackend struct{}

func (blockingBackend) Complete(ctx context.Context, systemPrompt string, content Content) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestGenerate_CallTimeoutBoundsHungRequests(t *testing.T) {
	c := NewClient(blockingBackend{}, WithBaseDelay(0), WithCallTimeout(10*time.Millisecond))

	done := make(chan string, 1)
	go func() { done <- c.Generate(context.Background(), "sys", Text("user"), 2) }()

	select {
	case out := <-done:
		assert.Equal(t, "", out)
	case <-time.After(2 * time.Second):
		t.Fatal("Generate did not honour the per-call timeout")
	}
}

func TestDocument_DataURL(t *testing.T) {
	doc := NewDocument("paper.pdf", []byte("%PDF"))

	assert.Equal(t, "JVBERg==", doc.Base64())
	assert.Equal(t, "data:application/pdf;base64,JVBERg==", doc.DataURL())
}
