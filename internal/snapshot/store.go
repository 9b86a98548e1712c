package snapshot

import (
	"sync"
	"time"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

// Snapshot is one complete view of the practice data.
type Snapshot struct {
	Appointments []appointment.Appointment
	Patients     []appointment.PatientProfile
	Version      uint64
	LoadedAt     time.Time
}

func (s Snapshot) clone() Snapshot {
	s.Appointments = append([]appointment.Appointment(nil), s.Appointments...)
	s.Patients = append([]appointment.PatientProfile(nil), s.Patients...)
	return s
}

type subscriber struct {
	id uint64
	cb func(Snapshot)
}

// Store holds the latest snapshot and fans every replacement out to its
// subscribers, synchronously and in subscription order. Callbacks run on the
// updating goroutine and must not call Update or Subscribe.
type Store struct {
	mu      sync.RWMutex
	current Snapshot
	loaded  bool
	subs    []subscriber
	nextID  uint64

	// notify serializes fan-out so subscribers see versions in order.
	notify sync.Mutex
}

func NewStore() *Store {
	return &Store{}
}

// Subscribe registers cb. When a snapshot is already loaded cb is called
// immediately with it. The returned func removes the subscription.
func (s *Store) Subscribe(cb func(Snapshot)) (unsubscribe func()) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, cb: cb})
	current, loaded := s.current, s.loaded
	s.mu.Unlock()

	if loaded {
		cb(current.clone())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Update replaces the snapshot as a whole and notifies every subscriber.
// Therapist ids are normalized on the way in.
func (s *Store) Update(appts []appointment.Appointment, patients []appointment.PatientProfile) Snapshot {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	next := Snapshot{
		Appointments: appointment.NormalizeAppointments(appts),
		Patients:     appointment.NormalizePatients(patients),
		Version:      s.current.Version + 1,
		LoadedAt:     time.Now(),
	}
	s.current = next
	s.loaded = true
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.cb(next.clone())
	}
	return next.clone()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Appointments() []appointment.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]appointment.Appointment(nil), s.current.Appointments...)
}

func (s *Store) Patients() []appointment.PatientProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]appointment.PatientProfile(nil), s.current.Patients...)
}
