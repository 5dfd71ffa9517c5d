package controllers

import (
	"memorymaze/backend/apperr"
	"memorymaze/backend/services"

	"github.com/gofiber/fiber/v2"
)

type StoryController struct {
	Stories *services.StoryService
}

func NewStoryController(stories *services.StoryService) *StoryController {
	return &StoryController{Stories: stories}
}

// GetStories godoc
// @Summary List stories
// @Tags stories
// @Produce json
// @Success 200 {array} models.StorySummary
// @Router /stories [get]
func (sc *StoryController) GetStories(c *fiber.Ctx) error {
	stories, err := sc.Stories.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stories)
}

// GetStory godoc
// @Summary Get a full story
// @Tags stories
// @Produce json
// @Param storyId path string true "Story ID"
// @Security ApiKeyAuth
// @Success 200 {object} models.Story
// @Failure 404 {object} utils.ErrorResponse
// @Router /stories/{storyId} [get]
func (sc *StoryController) GetStory(c *fiber.Ctx) error {
	story, err := sc.Stories.Get(c.UserContext(), c.Params("storyId"))
	if err != nil {
		return err
	}
	return c.JSON(story)
}

// GetChapter returns one chapter with its questions but not their answers.
func (sc *StoryController) GetChapter(c *fiber.Ctx) error {
	n, err := c.ParamsInt("chapterNumber")
	if err != nil {
		return apperr.NotFound("Chapter not found")
	}
	chapter, err := sc.Stories.Chapter(c.UserContext(), c.Params("storyId"), n)
	if err != nil {
		return err
	}
	return c.JSON(chapter)
}
