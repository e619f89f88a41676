package pagesettest

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/liuxd6825/telemetry/pageset"
)

// Failure is a page set that did not pass the smoke test.
type Failure struct {
	Name     string
	Messages []string
}

func (f Failure) String() string {
	if len(f.Messages) == 0 {
		return f.Name
	}
	return fmt.Sprintf("%s: %s", f.Name, f.Messages[len(f.Messages)-1])
}

// collector records failures outside of a test binary. FailNow ends the
// goroutine running the checks the same way testing.T does.
type collector struct {
	mu     sync.Mutex
	failed bool
	msgs   []string
}

func (c *collector) Errorf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = true
	c.msgs = append(c.msgs, fmt.Sprintf(format, args...))
}

func (c *collector) FailNow() {
	c.mu.Lock()
	c.failed = true
	c.mu.Unlock()
	runtime.Goexit()
}

func (c *collector) Helper() {}

func (c *collector) run(fn func(TestingT)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(c)
	}()
	<-done
}

// Collect checks every constructable page set of reg and returns the ones
// that failed, in name order.
func (s *SmokeTest) Collect(reg *pageset.Registry) []Failure {
	var failures []Failure
	for _, e := range reg.Entries() {
		if !e.Constructable() {
			s.logger.Debugf(logCategory, "Skipping %s: not directly constructable", e.Name)
			continue
		}
		e := e
		c := &collector{}
		c.run(func(t TestingT) { s.Check(t, e) })
		if c.failed {
			failures = append(failures, Failure{Name: e.Name, Messages: c.msgs})
		}
	}
	return failures
}
