package notelist

import (
	"slices"

	"fido/internal/services/notes"
)

// Snapshot is the complete list state at one point in time. Published
// snapshots are never modified afterwards.
type Snapshot struct {
	Notes             []notes.Note  `json:"notes"`
	Order             notes.OrderBy `json:"order"`
	GridLayout        bool          `json:"grid_layout"`
	OrderPanelVisible bool          `json:"order_panel_visible"`
	SearchVisible     bool          `json:"search_visible"`
}

func initialSnapshot(grid bool) Snapshot {
	return Snapshot{
		Notes:      []notes.Note{},
		Order:      notes.DefaultOrder,
		GridLayout: grid,
	}
}

// clone returns s with its own copy of Notes.
func (s Snapshot) clone() Snapshot {
	c := s
	c.Notes = slices.Clone(s.Notes)
	if c.Notes == nil {
		c.Notes = []notes.Note{}
	}
	return c
}
