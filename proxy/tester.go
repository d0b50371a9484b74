package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HALDRO/IMAP-Viewer-sub001/config"
	"github.com/HALDRO/IMAP-Viewer-sub001/utils"
)

// defaultBatchSize bounds how many proxies are probed at once; the
// cancellation token is checked between micro-batches.
const defaultBatchSize = 10

// TestTarget is the endpoint a proxy must relay to in order to count as
// working. Port 993 keeps the check representative of real IMAP traffic.
var TestTarget = "imap.gmail.com:993"

// TestResult is the outcome for one proxy in a bulk test session.
type TestResult struct {
	Address   string `json:"address"`
	Working   bool   `json:"working"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Session tracks one user-triggered bulk test run.
type session struct {
	cancel    context.CancelFunc
	mu        sync.Mutex
	results   []TestResult
	done      bool
	cancelled bool
}

// Tester runs bulk proxy reachability tests in micro-batches. A test
// session is cancellable mid-batch through its session token.
type Tester struct {
	log       *utils.Logger
	timeout   time.Duration
	batchSize int

	mu       sync.Mutex
	sessions map[string]*session
}

// NewTester creates a proxy tester.
func NewTester(log *utils.Logger) *Tester {
	return &Tester{
		log:       log,
		timeout:   8 * time.Second,
		batchSize: defaultBatchSize,
		sessions:  make(map[string]*session),
	}
}

// Start begins testing the given proxies in the background and returns a
// session token the caller can use to poll progress or cancel.
func (t *Tester) Start(proxies []config.ProxyConfig) string {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{cancel: cancel}

	t.mu.Lock()
	t.sessions[id] = sess
	t.mu.Unlock()

	go t.run(ctx, sess, proxies)
	return id
}

// Cancel stops an in-flight session. Unknown tokens are a no-op.
func (t *Tester) Cancel(id string) {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	t.mu.Unlock()
	if !ok {
		return
	}
	sess.mu.Lock()
	sess.cancelled = true
	sess.mu.Unlock()
	sess.cancel()
	t.log.Info("Proxy test session %s cancelled", id)
}

// Results returns the results gathered so far and whether the session has
// finished (completed or cancelled).
func (t *Tester) Results(id string) ([]TestResult, bool, bool) {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	t.mu.Unlock()
	if !ok {
		return nil, false, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	results := make([]TestResult, len(sess.results))
	copy(results, sess.results)
	return results, sess.done, true
}

func (t *Tester) run(ctx context.Context, sess *session, proxies []config.ProxyConfig) {
	defer func() {
		sess.mu.Lock()
		sess.done = true
		sess.mu.Unlock()
	}()

	for start := 0; start < len(proxies); start += t.batchSize {
		// Cancellation is honoured between micro-batches.
		if ctx.Err() != nil {
			return
		}
		end := start + t.batchSize
		if end > len(proxies) {
			end = len(proxies)
		}

		var wg sync.WaitGroup
		batch := make([]TestResult, end-start)
		for i, cfg := range proxies[start:end] {
			wg.Add(1)
			go func(i int, cfg config.ProxyConfig) {
				defer wg.Done()
				batch[i] = t.testOne(ctx, cfg)
			}(i, cfg)
		}
		wg.Wait()

		sess.mu.Lock()
		cancelled := sess.cancelled
		if !cancelled {
			sess.results = append(sess.results, batch...)
		}
		sess.mu.Unlock()
		if cancelled {
			return
		}
	}
}

// testOne verifies a single proxy by relaying a connection through it to
// the test target.
func (t *Tester) testOne(ctx context.Context, cfg config.ProxyConfig) TestResult {
	result := TestResult{Address: cfg.Address}

	cfg.Enabled = true
	resolution, err := Configure(cfg, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	started := time.Now()
	conn, err := resolution.Dialer.DialContext(dialCtx, "tcp", TestTarget)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	conn.Close()

	result.Working = true
	result.LatencyMs = time.Since(started).Milliseconds()
	return result
}
