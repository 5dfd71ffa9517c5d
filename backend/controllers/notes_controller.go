package controllers

import (
	"memorymaze/backend/apperr"
	"memorymaze/backend/middleware"
	"memorymaze/backend/services"

	"github.com/gofiber/fiber/v2"
)

type NotesController struct {
	Notes *services.NotesService
}

func NewNotesController(notes *services.NotesService) *NotesController {
	return &NotesController{Notes: notes}
}

// SaveNote godoc
// @Summary Create or update a chapter note
// @Tags notes
// @Accept json
// @Produce json
// @Param request body services.NoteRequest true "Note"
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /notes [post]
func (nc *NotesController) SaveNote(c *fiber.Ctx) error {
	var input services.NoteRequest
	if err := parseBody(c, &input); err != nil {
		return err
	}
	note, err := nc.Notes.Save(c.UserContext(), middleware.CurrentEmail(c), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "note": note})
}

// GetNote godoc
// @Summary Get the note of one chapter
// @Description Answers {"note": null} when the chapter has no note
// @Tags notes
// @Produce json
// @Param storyId path string true "Story ID"
// @Param chapterNumber path int true "Chapter number"
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /notes/{storyId}/{chapterNumber} [get]
func (nc *NotesController) GetNote(c *fiber.Ctx) error {
	chapter, err := c.ParamsInt("chapterNumber")
	if err != nil {
		return apperr.Validation(msgInvalidRequest)
	}
	note, err := nc.Notes.Get(c.UserContext(), middleware.CurrentEmail(c), c.Params("storyId"), chapter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"note": note})
}

// GetStoryNotes godoc
// @Summary List a reader's notes for one story
// @Tags notes
// @Produce json
// @Param storyId path string true "Story ID"
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponse
// @Router /notes/{storyId} [get]
func (nc *NotesController) GetStoryNotes(c *fiber.Ctx) error {
	notes, err := nc.Notes.ForStory(c.UserContext(), middleware.CurrentEmail(c), c.Params("storyId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notes": notes})
}

// GetAllNotes godoc
// @Summary List all of a reader's notes
// @Tags notes
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponse
// @Router /notes/all [get]
func (nc *NotesController) GetAllNotes(c *fiber.Ctx) error {
	notes, err := nc.Notes.All(c.UserContext(), middleware.CurrentEmail(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notes": notes})
}
