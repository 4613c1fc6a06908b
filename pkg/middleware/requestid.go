package middleware

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// RequestIDHeader is the header RequestID consults on the request and echoes
// on the response.
const RequestIDHeader = "X-Request-ID"

// IDGenerator provides efficient generation of request ids by precomputing
// UUIDs in a background goroutine. The channel acts as a buffer, so under
// normal load an id is already waiting when a request arrives.
type IDGenerator struct {
	idChan   chan string
	stop     chan struct{}
	stopOnce sync.Once
}

// NewIDGenerator creates a generator with bufferSize precomputed ids and
// starts the refill worker.
func NewIDGenerator(bufferSize int) *IDGenerator {
	if bufferSize < 1 {
		bufferSize = 1
	}
	g := &IDGenerator{
		idChan: make(chan string, bufferSize),
		stop:   make(chan struct{}),
	}
	go g.fill()
	return g
}

// fill keeps the buffer topped up until Stop is called.
func (g *IDGenerator) fill() {
	for {
		select {
		case g.idChan <- uuid.New().String():
		case <-g.stop:
			return
		}
	}
}

// Get returns a precomputed id without blocking. When the buffer is empty it
// generates one on the spot, so requests are never delayed by id generation
// even during traffic spikes.
func (g *IDGenerator) Get() string {
	select {
	case id := <-g.idChan:
		return id
	default:
		return uuid.New().String()
	}
}

// Stop terminates the refill worker. Get keeps working afterwards; ids are
// just no longer precomputed.
func (g *IDGenerator) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

var defaultGenerator *IDGenerator
var defaultGeneratorOnce sync.Once

const defaultBufferSize = 4096

// DefaultIDGenerator returns the shared package generator, creating it on
// first use.
func DefaultIDGenerator() *IDGenerator {
	defaultGeneratorOnce.Do(func() {
		defaultGenerator = NewIDGenerator(defaultBufferSize)
	})
	return defaultGenerator
}

// RequestID returns a before unit that assigns every request an id. An id
// already present in the X-Request-ID request header is kept, so ids survive
// hops through proxies that assign their own. The id is stored in the
// mcontext container and echoed in the response header.
//
// A nil gen uses the shared package generator.
func RequestID(gen *IDGenerator) chain.Unit {
	return chain.BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			g := gen
			if g == nil {
				g = DefaultIDGenerator()
			}
			id = g.Get()
		}
		mcontext.WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)
		return nil
	})
}
