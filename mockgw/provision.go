package mockgw

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/portal/pkg/clock"
)

var (
	defaultProvisionWorkers   uint = 2
	defaultProvisionQueueSize uint = 64
)

// provisionJob activates one newly created key.
type provisionJob struct {
	key *apiKey
}

// provisionerConfig configures the provisioner.
type provisionerConfig struct {
	// Delay is how long a key stays pending before it is listed.
	Delay time.Duration

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel.
	QueueSize uint

	Clock  clock.Clock
	Logger *slog.Logger

	// Activate makes the key visible to the key listing and chat auth.
	Activate func(*apiKey)
}

// provisioner activates created keys asynchronously, the way a gateway
// backed by replicated storage exposes a new key only after it propagates.
type provisioner struct {
	config *provisionerConfig
	queue  chan provisionJob
	wg     sync.WaitGroup
	once   sync.Once
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func newProvisioner(c *provisionerConfig) (*provisioner, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultProvisionWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultProvisionQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &provisioner{
		config: c,
		queue:  make(chan provisionJob, c.QueueSize),
		logger: c.Logger,
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a key for activation. It returns false when the queue is
// full and the job was not queued.
func (p *provisioner) Enqueue(job provisionJob) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("key provisioning queued", "id", job.key.entry.ID)
		return true
	default:
		p.logger.Warn("key provisioning queue full", "id", job.key.entry.ID)
		return false
	}
}

// Close stops the workers. Keys still waiting out the delay stay pending.
// Calling Close more than once is a no-op.
func (p *provisioner) Close() {
	p.once.Do(func() {
		p.cancel()
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *provisioner) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("provisioning worker started", "worker_id", id)

	for job := range p.queue {
		if err := p.config.Clock.Sleep(p.ctx, p.config.Delay); err != nil {
			continue
		}
		p.config.Activate(job.key)
		p.logger.Debug("key provisioned", "id", job.key.entry.ID)
	}

	p.logger.Debug("provisioning worker stopped", "worker_id", id)
}
