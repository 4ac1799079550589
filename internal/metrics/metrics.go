// Package metrics exposes counters for signing activity. Registration is
// explicit so tests and library consumers can use their own registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	descriptorsBuilt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storeauth_descriptors_built_total",
		Help: "Signed operation descriptors assembled, by store method.",
	}, []string{"method"})

	descriptorFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storeauth_descriptor_failures_total",
		Help: "Descriptor assembly failures, by reason.",
	}, []string{"reason"})

	delegationsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storeauth_delegations_issued_total",
		Help: "Delegation certificates issued by this client.",
	})
)

// Register attaches the collectors to r, typically
// prometheus.DefaultRegisterer from a main.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{descriptorsBuilt, descriptorFailures, delegationsIssued} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func IncDescriptor(method string) {
	descriptorsBuilt.WithLabelValues(method).Inc()
}

func IncFailure(reason string) {
	descriptorFailures.WithLabelValues(reason).Inc()
}

func IncDelegation() {
	delegationsIssued.Inc()
}
