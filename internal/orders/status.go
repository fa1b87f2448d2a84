package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusReturned  Status = "returned"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusShipped: true, StatusDelivered: true, StatusReturned: true},
	StatusShipped:   {StatusDelivered: true, StatusReturned: true},
	StatusDelivered: {StatusReturned: true},
	StatusReturned:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Finalized orders may be deleted. A delivered order can still be returned.
func (s Status) Finalized() bool {
	return s == StatusDelivered || s == StatusReturned
}
