package services

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. Labels are small closed sets (outcome/status names), so
// cardinality stays bounded.
var (
	sessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "changingroom_sessions_opened_total",
		Help: "Changing-room sessions opened.",
	})

	sessionsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changingroom_sessions_finalized_total",
		Help: "Sessions closed, by outcome (complete|flagged).",
	}, []string{"outcome"})

	itemsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changingroom_items_resolved_total",
		Help: "Items resolved, by outcome (purchased|restocked|lost).",
	}, []string{"outcome"})

	resolveConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "changingroom_resolve_state_errors_total",
		Help: "Resolution attempts rejected because the item was already resolved.",
	})

	discrepanciesOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "changingroom_discrepancies_opened_total",
		Help: "Exits finished with items still unresolved.",
	})

	basketDispositions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changingroom_basket_dispositions_total",
		Help: "Basket terminal dispositions (abandoned|transferred).",
	}, []string{"disposition"})

	backOfHouseReturned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "changingroom_back_of_house_returned_total",
		Help: "Restocked items returned to the floor.",
	})

	shrinkageRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "changingroom_shrinkage_recovered_total",
		Help: "Lost items later recovered.",
	})
)

func init() {
	prometheus.MustRegister(
		sessionsOpened,
		sessionsFinalized,
		itemsResolved,
		resolveConflicts,
		discrepanciesOpened,
		basketDispositions,
		backOfHouseReturned,
		shrinkageRecovered,
	)
}
