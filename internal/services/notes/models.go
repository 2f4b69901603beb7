package notes

// NoID marks a note that has not been assigned a durable id yet.
const NoID int64 = -1

// PlaceholderTitle replaces a blank title when a new note is created.
const PlaceholderTitle = "Untitled Note"

// Note represents a single note in the system
type Note struct {
	ID        int64  `bson:"_id" json:"id" yaml:"id" example:"3"`
	Title     string `bson:"title" json:"title" yaml:"title" example:"Groceries"`
	Content   string `bson:"content" json:"content" yaml:"content" example:"milk, eggs"`
	Color     int    `bson:"color" json:"color" yaml:"color" example:"4294940672"`
	IsPinned  bool   `bson:"pinned" json:"is_pinned" yaml:"pinned"`
	IsChecked bool   `bson:"checked" json:"is_checked" yaml:"checked"`
}

// NewNote returns a blank note that still needs an id.
func NewNote() Note {
	return Note{ID: NoID}
}

// IsNew reports whether the note is still under construction.
func (n Note) IsNew() bool {
	return n.ID == NoID
}
