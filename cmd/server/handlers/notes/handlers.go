package notes

import (
	"context"

	"fido/cmd/server/handlers/handlerutil"
	"fido/cmd/server/handlers/httperr"
	"fido/internal/logger"
	"fido/internal/services/editor"
	"fido/internal/services/notelist"
	"fido/internal/services/notes"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Service defines the note use-cases the handlers call directly.
type Service interface {
	editor.UseCases
	ListNotes(ctx context.Context, order notes.OrderBy) ([]notes.Note, error)
}

// Engine is the list state engine the handlers read from and dispatch to.
type Engine interface {
	Snapshot() notelist.Snapshot
	Dispatch(ctx context.Context, ev notelist.Event) error
}

var (
	_ Service = (*notes.Service)(nil)
	_ Engine  = (*notelist.Engine)(nil)
)

// Handlers contains the notes HTTP handlers
type Handlers struct {
	service   Service
	engine    Engine
	validator *validator.Validate
}

// NewHandlers creates new notes handlers
func NewHandlers(service Service, engine Engine, validator *validator.Validate) *Handlers {
	return &Handlers{
		service:   service,
		engine:    engine,
		validator: validator,
	}
}

// List returns the current list snapshot
// @Summary Current list state
// @Tags notes
// @Produce json
// @Success 200 {object} notelist.Snapshot
// @Router /notes [get]
func (h *Handlers) List(c *fiber.Ctx) error {
	return c.JSON(h.engine.Snapshot())
}

// Get returns one stored note
// @Summary Get a note
// @Tags notes
// @Produce json
// @Param id path int true "Note ID"
// @Success 200 {object} notes.Note
// @Failure 404 {object} httperr.E
// @Router /notes/{id} [get]
func (h *Handlers) Get(c *fiber.Ctx) error {
	noteID, err := handlerutil.ExtractNoteID(c, "Get")
	if err != nil {
		return err
	}

	n, err := h.service.GetNoteByID(c.UserContext(), noteID)
	if err != nil {
		return handlerutil.HandleServiceError(err, "Get", &noteID)
	}
	return c.JSON(n)
}

// Create handles note creation through an editor draft
// @Summary Create a new note
// @Tags notes
// @Accept json
// @Produce json
// @Param request body CreateNoteRequest true "Create note request"
// @Success 201 {object} notes.Note
// @Failure 400 {object} httperr.E
// @Router /notes [post]
func (h *Handlers) Create(c *fiber.Ctx) error {
	var req CreateNoteRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Create"); err != nil {
		return err
	}

	ctx := c.UserContext()
	// The stored collection, not the snapshot, so back-to-back creates see
	// each other.
	current, err := h.service.ListNotes(ctx, notes.DefaultOrder)
	if err != nil {
		return handlerutil.HandleServiceError(err, "Create", nil)
	}

	d := editor.New(h.service)
	d.SetTitle(req.Title)
	d.SetContent(req.Content)
	d.SetColor(req.Color)
	if req.IsPinned {
		d.TogglePinned()
	}
	if req.IsChecked {
		d.ToggleChecked()
	}
	if err := d.Save(ctx, len(current)); err != nil {
		return handlerutil.HandleServiceError(err, "Create", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(d.Note)
}

// Update replaces every editable field of a note
// @Summary Update a note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path int true "Note ID"
// @Param request body UpdateNoteRequest true "Update note request"
// @Success 200 {object} notes.Note
// @Failure 400 {object} httperr.E
// @Failure 404 {object} httperr.E
// @Router /notes/{id} [put]
func (h *Handlers) Update(c *fiber.Ctx) error {
	noteID, err := handlerutil.ExtractNoteID(c, "Update")
	if err != nil {
		return err
	}

	var req UpdateNoteRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Update"); err != nil {
		return err
	}

	ctx := c.UserContext()
	d, err := editor.Load(ctx, h.service, noteID)
	if err != nil {
		return handlerutil.HandleServiceError(err, "Update", &noteID)
	}

	d.SetTitle(req.Title)
	d.SetContent(req.Content)
	d.SetColor(req.Color)
	if d.Note.IsPinned != req.IsPinned {
		d.TogglePinned()
	}
	if d.Note.IsChecked != req.IsChecked {
		d.ToggleChecked()
	}
	if err := d.Save(ctx, 0); err != nil {
		return handlerutil.HandleServiceError(err, "Update", &noteID)
	}

	return c.JSON(d.Note)
}

// Dispatch queues a list event on the engine
// @Summary Dispatch a list event
// @Tags events
// @Accept json
// @Produce json
// @Param request body EventRequest true "Event"
// @Success 202 {object} EventResponse
// @Failure 400 {object} httperr.E
// @Failure 404 {object} httperr.E
// @Failure 503 {object} httperr.E
// @Router /events [post]
func (h *Handlers) Dispatch(c *fiber.Ctx) error {
	var req EventRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Dispatch"); err != nil {
		return err
	}

	ctx := c.UserContext()
	note := req.Note
	if note == nil && req.NoteID != nil {
		n, err := h.service.GetNoteByID(ctx, *req.NoteID)
		if err != nil {
			return handlerutil.HandleServiceError(err, "Dispatch", req.NoteID)
		}
		note = &n
	}

	ev, err := notelist.ParseEvent(req.Type, req.Order, note)
	if err != nil {
		logger.L().Info("event rejected", "handler", "Dispatch", "type", req.Type, "error", err)
		return httperr.InvalidInput(err)
	}

	if err := h.engine.Dispatch(ctx, ev); err != nil {
		return handlerutil.HandleServiceError(err, "Dispatch", req.NoteID)
	}

	return c.Status(fiber.StatusAccepted).JSON(EventResponse{
		Status: "accepted",
		Event:  notelist.Name(ev),
	})
}
