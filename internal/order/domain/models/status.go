package models

// Status is the closed set of order states. An order only ever moves
// along the transition table below; everything else is rejected.
type Status string

const (
	StatusCreated         Status = "created"
	StatusPaid            Status = "paid"
	StatusInProgress      Status = "in_progress"
	StatusReady           Status = "ready"
	StatusDelivered       Status = "delivered"
	StatusExpired         Status = "expired_not_picked_up"
	StatusCancelledUnpaid Status = "cancelled_unpaid"
)

// transitions is the full legal transition graph. Terminal states have
// no entry. Auditing or extending the machine means editing this table,
// nothing else.
var transitions = map[Status][]Status{
	StatusCreated:    {StatusPaid, StatusCancelledUnpaid, StatusInProgress},
	StatusPaid:       {StatusInProgress},
	StatusInProgress: {StatusReady},
	StatusReady:      {StatusDelivered, StatusExpired},
}

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPaid, StatusInProgress, StatusReady,
		StatusDelivered, StatusExpired, StatusCancelledUnpaid:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether from -> to exists in the transition graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StampColumn maps a target status to the timestamp column it sets on
// entry. The graph is acyclic per state, so each stamp is written once.
func StampColumn(to Status) string {
	switch to {
	case StatusPaid:
		return "paid_at"
	case StatusReady:
		return "ready_at"
	case StatusDelivered:
		return "delivered_at"
	}
	return ""
}

// Role identifies the actor requesting a transition. Customer-facing
// roles come from the external identity provider; gateway and scheduler
// are internal principals.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleOperator   Role = "foodtruck_operator"
	RolePlazaAdmin Role = "plaza_admin"
	RoleSuperadmin Role = "superadmin"
	RoleGateway    Role = "payment_gateway"
	RoleScheduler  Role = "scheduler"
)

var staffRoles = []Role{RoleOperator, RolePlazaAdmin, RoleSuperadmin}

// transitionRoles lists which roles may trigger each edge of the graph.
var transitionRoles = map[Status]map[Status][]Role{
	StatusCreated: {
		StatusPaid:            {RoleGateway},
		StatusCancelledUnpaid: append(staffRoles, RoleGateway, RoleScheduler),
		StatusInProgress:      staffRoles,
	},
	StatusPaid: {
		StatusInProgress: staffRoles,
	},
	StatusInProgress: {
		StatusReady: staffRoles,
	},
	StatusReady: {
		StatusDelivered: staffRoles,
		StatusExpired:   {RoleScheduler, RoleSuperadmin},
	},
}

// RoleMayTrigger reports whether role is authorized for the from -> to edge.
func RoleMayTrigger(role Role, from, to Status) bool {
	for _, r := range transitionRoles[from][to] {
		if r == role {
			return true
		}
	}
	return false
}
