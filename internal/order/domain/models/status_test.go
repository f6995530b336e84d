package models

import "testing"

func allStatuses() []Status {
	return []Status{
		StatusCreated, StatusPaid, StatusInProgress, StatusReady,
		StatusDelivered, StatusExpired, StatusCancelledUnpaid,
	}
}

func TestCanTransitionTable(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusCreated, StatusPaid}:            true,
		{StatusCreated, StatusCancelledUnpaid}: true,
		{StatusCreated, StatusInProgress}:      true,
		{StatusPaid, StatusInProgress}:         true,
		{StatusInProgress, StatusReady}:        true,
		{StatusReady, StatusDelivered}:         true,
		{StatusReady, StatusExpired}:           true,
	}

	for _, from := range allStatuses() {
		for _, to := range allStatuses() {
			want := legal[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusDelivered:       true,
		StatusExpired:         true,
		StatusCancelledUnpaid: true,
	}

	for _, s := range allStatuses() {
		if got := s.Terminal(); got != terminal[s] {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, terminal[s])
		}
	}

	if Status("bogus").Terminal() {
		t.Error("unknown status must not be terminal")
	}
}

func TestStampColumn(t *testing.T) {
	tests := []struct {
		to   Status
		want string
	}{
		{StatusPaid, "paid_at"},
		{StatusReady, "ready_at"},
		{StatusDelivered, "delivered_at"},
		{StatusInProgress, ""},
		{StatusExpired, ""},
		{StatusCancelledUnpaid, ""},
	}

	for _, tt := range tests {
		if got := StampColumn(tt.to); got != tt.want {
			t.Errorf("StampColumn(%s) = %q, want %q", tt.to, got, tt.want)
		}
	}
}

func TestRoleMayTrigger(t *testing.T) {
	tests := []struct {
		name string
		role Role
		from Status
		to   Status
		want bool
	}{
		{"gateway confirms payment", RoleGateway, StatusCreated, StatusPaid, true},
		{"operator cannot confirm payment", RoleOperator, StatusCreated, StatusPaid, false},
		{"operator begins preparation", RoleOperator, StatusPaid, StatusInProgress, true},
		{"operator marks ready", RoleOperator, StatusInProgress, StatusReady, true},
		{"operator confirms pickup", RoleOperator, StatusReady, StatusDelivered, true},
		{"operator rejects new order", RoleOperator, StatusCreated, StatusCancelledUnpaid, true},
		{"customer cannot touch anything", RoleCustomer, StatusPaid, StatusInProgress, false},
		{"scheduler expires ready", RoleScheduler, StatusReady, StatusExpired, true},
		{"operator cannot expire", RoleOperator, StatusReady, StatusExpired, false},
		{"scheduler cancels unconfirmed", RoleScheduler, StatusCreated, StatusCancelledUnpaid, true},
		{"superadmin marks ready", RoleSuperadmin, StatusInProgress, StatusReady, true},
		{"plaza admin delivers", RolePlazaAdmin, StatusReady, StatusDelivered, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleMayTrigger(tt.role, tt.from, tt.to); got != tt.want {
				t.Errorf("RoleMayTrigger(%s, %s, %s) = %v, want %v", tt.role, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTransitionAllowedCounterGate(t *testing.T) {
	counter := Order{Status: StatusCreated, PaymentMethod: PaymentCounter}
	if !counter.TransitionAllowed(StatusInProgress) {
		t.Error("counter-payment order must go created -> in_progress directly")
	}

	online := Order{Status: StatusCreated, PaymentMethod: PaymentOnline}
	if online.TransitionAllowed(StatusInProgress) {
		t.Error("online order must pass through paid before in_progress")
	}
	if !online.TransitionAllowed(StatusPaid) {
		t.Error("online order must accept payment confirmation")
	}

	ready := Order{Status: StatusReady, PaymentMethod: PaymentOnline}
	if ready.TransitionAllowed(StatusPaid) {
		t.Error("ready -> paid must be illegal")
	}
}
