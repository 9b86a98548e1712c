package auth

import (
	"strings"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleTherapist    Role = "therapist"
	RoleReceptionist Role = "receptionist"
)

type Capability string

const (
	ManageUsers         Capability = "manage_users"
	ManageSchedule      Capability = "manage_schedule"
	ViewReports         Capability = "view_reports"
	ManagePatients      Capability = "manage_patients"
	ViewAllPatients     Capability = "view_all_patients"
	DeleteRecords       Capability = "delete_records"
	SwitchTherapistView Capability = "switch_therapist_view"
	ManageOwnSchedule   Capability = "manage_own_schedule"
	ViewOwnPatients     Capability = "view_own_patients"
	EditOwnRecords      Capability = "edit_own_records"
	ViewSchedule        Capability = "view_schedule"
	CreateAppointment   Capability = "create_appointment"
	ManagePayments      Capability = "manage_payments"
)

type CapabilitySet map[Capability]struct{}

func newSet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

var roleCapabilities = map[Role]CapabilitySet{
	RoleAdmin: newSet(
		ManageUsers, ManageSchedule, ViewReports, ManagePatients,
		ViewAllPatients, DeleteRecords, SwitchTherapistView,
	),
	RoleTherapist: newSet(
		ManageOwnSchedule, ViewOwnPatients, EditOwnRecords, ViewSchedule,
		SwitchTherapistView, ViewAllPatients,
	),
	RoleReceptionist: newSet(
		ViewSchedule, CreateAppointment, ManagePayments,
	),
}

func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Capabilities returns the explicit capability set of r. Unknown roles have
// none.
func (r Role) Capabilities() CapabilitySet {
	return roleCapabilities[r]
}

// Principal is the identity a request acts as.
type Principal struct {
	Subject     string
	Role        Role
	TherapistID string
}

// Can reports whether p holds c. Admins hold every capability.
func (p Principal) Can(c Capability) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.Role.Capabilities().Has(c)
}

// CanAny reports whether p holds at least one of caps.
func (p Principal) CanAny(caps ...Capability) bool {
	for _, c := range caps {
		if p.Can(c) {
			return true
		}
	}
	return false
}

// CurrentTherapistFilter is the calendar a principal sees by default: its own,
// every calendar when it may switch views, otherwise the fallback therapist.
func (p Principal) CurrentTherapistFilter() string {
	if p.TherapistID != "" {
		return p.TherapistID
	}
	if p.Can(SwitchTherapistView) {
		return appointment.AllTherapists
	}
	return appointment.FallbackTherapist
}

// ResolveTherapist picks the calendar for a request that asked for requested.
// Principals that cannot switch views always get their default.
func (p Principal) ResolveTherapist(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" || !p.Can(SwitchTherapistView) {
		return p.CurrentTherapistFilter()
	}
	return requested
}

// OwnsCalendar reports whether p acts on therapistID's calendar as its owner.
func (p Principal) OwnsCalendar(therapistID string) bool {
	return p.TherapistID != "" && appointment.NormalizeTherapist(p.TherapistID) == appointment.NormalizeTherapist(therapistID)
}

// CanViewDetails reports whether p may see the clinical details of a.
func (p Principal) CanViewDetails(a appointment.Appointment) bool {
	return p.CanViewRecordsOf(a.TherapistID)
}

// CanViewRecordsOf reports whether p may read patient histories kept on
// therapistID's calendar.
func (p Principal) CanViewRecordsOf(therapistID string) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.OwnsCalendar(therapistID)
}

// CanManagePaymentsOf reports whether p may change payment state on
// therapistID's calendar.
func (p Principal) CanManagePaymentsOf(therapistID string) bool {
	if p.Can(ManagePayments) {
		return true
	}
	return p.Can(EditOwnRecords) && p.OwnsCalendar(therapistID)
}

// CanViewFinancials reports whether p may see cost and payment state of a.
func (p Principal) CanViewFinancials(a appointment.Appointment) bool {
	if p.Can(ManagePayments) || p.Can(ViewReports) {
		return true
	}
	return p.OwnsCalendar(a.TherapistID)
}

// CanBookFor reports whether p may create or move appointments on
// therapistID's calendar.
func (p Principal) CanBookFor(therapistID string) bool {
	if p.CanAny(ManageSchedule, CreateAppointment) {
		return true
	}
	return p.Can(ManageOwnSchedule) && p.OwnsCalendar(therapistID)
}

// CanManagePatientsOf reports whether p may edit the roster of therapistID.
func (p Principal) CanManagePatientsOf(therapistID string) bool {
	if p.Can(ManagePatients) {
		return true
	}
	return p.Can(EditOwnRecords) && p.OwnsCalendar(therapistID)
}

// DevPrincipal is used when no signing secret is configured.
func DevPrincipal() Principal {
	return Principal{Subject: "dev", Role: RoleAdmin}
}
