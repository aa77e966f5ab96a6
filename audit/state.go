package audit

import "maps"

// Auditable is implemented by records that embed State.
type Auditable interface {
	AuditState() *State
}

// State is embedded in audited records. It keeps the values seen after the
// last load or save and the user responsible for the next change.
type State struct {
	initial   map[string]any
	changedBy string
	disabled  bool
}

func (s *State) AuditState() *State { return s }

// Snapshot replaces the initial values.
func (s *State) Snapshot(values map[string]any) {
	s.initial = maps.Clone(values)
}

// Initial returns the snapshot and whether one was taken.
func (s *State) Initial() (map[string]any, bool) {
	return s.initial, s.initial != nil
}

// SetChangedBy names the user making the next change.
func (s *State) SetChangedBy(user string) { s.changedBy = user }

func (s *State) ChangedBy() string { return s.changedBy }

// Disable stops audit entries for this record.
func (s *State) Disable() { s.disabled = true }

func (s *State) Enable() { s.disabled = false }

func (s *State) Disabled() bool { return s.disabled }
