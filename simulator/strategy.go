package simulator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/infra/mqtt"
)

// Decision is how a unit answers one assignment.
type Decision struct {
	// Answer is false when the unit stays silent.
	Answer bool
	Accept bool
	Delay  time.Duration
}

// AckStrategy decides how a unit answers assignments.
type AckStrategy interface {
	Decide(unitID string, msg mqtt.AssignmentMessage) Decision
}

// AutoAck accepts every assignment after an optional fixed delay.
type AutoAck struct {
	Delay time.Duration
}

func (a AutoAck) Decide(string, mqtt.AssignmentMessage) Decision {
	return Decision{Answer: true, Accept: true, Delay: a.Delay}
}

// DeclineUnits declines assignments sent to the listed units and accepts the
// rest.
type DeclineUnits map[string]bool

func (d DeclineUnits) Decide(unitID string, _ mqtt.AssignmentMessage) Decision {
	return Decision{Answer: true, Accept: !d[unitID]}
}

// RandomAck drops answers with DropRate, declines with DeclineRate and
// otherwise accepts after Delay.
type RandomAck struct {
	Delay       time.Duration
	DropRate    float64
	DeclineRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAck seeds the strategy so runs are reproducible.
func NewRandomAck(seed int64, delay time.Duration, dropRate, declineRate float64) *RandomAck {
	return &RandomAck{Delay: delay, DropRate: dropRate, DeclineRate: declineRate, rng: rand.New(rand.NewSource(seed))}
}

func (r *RandomAck) Decide(string, mqtt.AssignmentMessage) Decision {
	r.mu.Lock()
	p := r.rng.Float64()
	r.mu.Unlock()
	switch {
	case p < r.DropRate:
		return Decision{}
	case p < r.DropRate+r.DeclineRate:
		return Decision{Answer: true, Accept: false, Delay: r.Delay}
	}
	return Decision{Answer: true, Accept: true, Delay: r.Delay}
}
