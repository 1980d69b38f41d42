package metrics

// Metrics is what the booking services report. It keeps them independent of
// the Prometheus client.
type Metrics interface {
	IncRoomsCreated()
	IncJoins(status string)
	IncRemovals()
	AddPromotions(n int)
	AddDemotions(n int)
	IncAllocations(mode string)
	AddFixtures(n int)
	IncResults()
	ObserveMutation(op string, seconds float64)
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncRoomsCreated()                {}
func (Nop) IncJoins(string)                 {}
func (Nop) IncRemovals()                    {}
func (Nop) AddPromotions(int)               {}
func (Nop) AddDemotions(int)                {}
func (Nop) IncAllocations(string)           {}
func (Nop) AddFixtures(int)                 {}
func (Nop) IncResults()                     {}
func (Nop) ObserveMutation(string, float64) {}
