package controllers

import (
	"memorymaze/backend/middleware"
	"memorymaze/backend/services"

	"github.com/gofiber/fiber/v2"
)

type ProgressController struct {
	Progress *services.ProgressService
	Verifier *services.Verifier
}

func NewProgressController(progress *services.ProgressService, verifier *services.Verifier) *ProgressController {
	return &ProgressController{Progress: progress, Verifier: verifier}
}

// GetProgress godoc
// @Summary Get reading progress for a story
// @Description Returns the stored record, or a default one with chapter 1 unlocked
// @Tags progress
// @Produce json
// @Param storyId path string true "Story ID"
// @Security ApiKeyAuth
// @Success 200 {object} models.Progress
// @Router /progress/{storyId} [get]
func (pc *ProgressController) GetProgress(c *fiber.Ctx) error {
	p, err := pc.Progress.Get(c.UserContext(), middleware.CurrentEmail(c), c.Params("storyId"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// SubmitCheckpoint godoc
// @Summary Record a checkpoint attempt
// @Description Stores the score and unlocks the next chapter at 70 or more
// @Tags progress
// @Accept json
// @Produce json
// @Param storyId path string true "Story ID"
// @Param request body services.CheckpointInput true "Checkpoint submission"
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Router /progress/{storyId}/checkpoint [post]
func (pc *ProgressController) SubmitCheckpoint(c *fiber.Ctx) error {
	var input services.CheckpointInput
	if err := parseBody(c, &input); err != nil {
		return err
	}
	result, err := pc.Progress.ApplyCheckpoint(c.UserContext(), middleware.CurrentEmail(c), c.Params("storyId"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"passed":   result.Passed,
		"progress": result.Progress,
	})
}

// VerifyAnswers godoc
// @Summary Grade answers for a chapter
// @Tags progress
// @Accept json
// @Produce json
// @Param storyId path string true "Story ID"
// @Param request body services.VerifyInput true "Answers in question order"
// @Security ApiKeyAuth
// @Success 200 {object} models.VerifyResult
// @Failure 404 {object} utils.ErrorResponse
// @Router /progress/{storyId}/verify [post]
func (pc *ProgressController) VerifyAnswers(c *fiber.Ctx) error {
	var input services.VerifyInput
	if err := parseBody(c, &input); err != nil {
		return err
	}
	result, err := pc.Verifier.Verify(c.UserContext(), c.Params("storyId"), input.ChapterNumber, input.Answers)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
