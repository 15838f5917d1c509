package capture

import (
	"log"
	"sync"
	"time"

	"github.com/tomaslejdung/gomeet/pkg/session"
)

// Publisher runs the capture loop for one participant. It watches the
// presenter slot and only produces frames while its participant holds
// it; settings are re-read every cycle so fps, quality and resolution
// changes apply on the next frame.
type Publisher struct {
	sess   *session.Session
	source Source
	id     string

	mu      sync.Mutex
	cancel  chan struct{}
	stopped bool
}

// NewPublisher creates a publisher for the given participant id.
func NewPublisher(sess *session.Session, source Source, id string) *Publisher {
	return &Publisher{sess: sess, source: source, id: id}
}

// Run watches presenter transitions and starts or stops the capture
// loop accordingly. Blocks until Stop is called.
func (p *Publisher) Run() {
	watch := p.sess.PresenterWatch()
	defer p.sess.PresenterUnwatch(watch)

	p.mu.Lock()
	p.cancel = make(chan struct{})
	stop := p.cancel
	p.mu.Unlock()

	// The slot may already be ours before the first transition.
	var loopStop chan struct{}
	var loopDone chan struct{}
	startLoop := func() {
		if loopStop != nil {
			return
		}
		loopStop = make(chan struct{})
		loopDone = make(chan struct{})
		go p.captureLoop(loopStop, loopDone)
	}
	stopLoop := func() {
		if loopStop == nil {
			return
		}
		close(loopStop)
		<-loopDone
		loopStop, loopDone = nil, nil
	}
	defer stopLoop()

	if p.sess.List().PresenterID == p.id {
		startLoop()
	}

	for {
		select {
		case <-stop:
			return
		case presenter := <-watch:
			if presenter == p.id {
				startLoop()
			} else {
				stopLoop()
			}
		}
	}
}

// Stop terminates the watch and any running capture loop.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.cancel != nil {
		close(p.cancel)
	}
}

// captureLoop produces frames at the configured rate until stopped. A
// source error skips the cycle; the session keeps its last frame.
func (p *Publisher) captureLoop(stop, done chan struct{}) {
	defer close(done)

	for {
		settings := p.sess.Settings()
		interval := time.Second / time.Duration(settings.FPS)
		if interval <= 0 {
			interval = time.Second / 30
		}

		data, err := p.source.Frame(settings)
		if err != nil {
			log.Printf("Capture failed, skipping frame: %v", err)
		} else if _, err := p.sess.SubmitFrame(p.id, data); err != nil {
			// Slot lost between the watch signal and the submit.
			return
		}

		select {
		case <-stop:
			return
		case <-time.After(interval):
		}
	}
}
