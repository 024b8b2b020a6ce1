package activities

// Predicate is a typed filter over the taxonomy axes.
type Predicate func(ActivityType) bool

// IsAvailable matches time counted as available work.
func IsAvailable(t ActivityType) bool { return t.Availability == Available }

// GeneratesIncome matches activities that produce a billable opportunity.
func GeneratesIncome(t ActivityType) bool { return t.GeneratesIncome == Income }

// IsBillable matches activities whose work is invoiced.
func IsBillable(t ActivityType) bool { return t.BillingCategory == Billable }

// And matches when every predicate matches.
func And(preds ...Predicate) Predicate {
	return func(t ActivityType) bool {
		for _, p := range preds {
			if !p(t) {
				return false
			}
		}
		return true
	}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(t ActivityType) bool { return !p(t) }
}

var (
	// IncomeProducing is AVAILABLE and INCOME: the hours counted for productivity
	// and the only activities allowed to reference a service order.
	IncomeProducing = And(IsAvailable, GeneratesIncome)
	// BillableIncome is IncomeProducing restricted to BILLABLE.
	BillableIncome = And(IncomeProducing, IsBillable)
)
