package controllers

import (
	"memorymaze/backend/services"
	"memorymaze/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type AdminController struct {
	Admin   *services.AdminService
	Stories *services.StoryService
}

func NewAdminController(admin *services.AdminService, stories *services.StoryService) *AdminController {
	return &AdminController{Admin: admin, Stories: stories}
}

// GetUsers godoc
// @Summary List all users
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} utils.ErrorResponse
// @Router /admin/users [get]
func (ac *AdminController) GetUsers(c *fiber.Ctx) error {
	users, err := ac.Admin.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users, "total": len(users)})
}

// UpdateUserRole godoc
// @Summary Change a user's role
// @Description Refuses to demote the last admin
// @Tags admin
// @Accept json
// @Produce json
// @Param email path string true "User email"
// @Param request body map[string]string true "{\"role\": \"admin\"}"
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /admin/users/{email}/role [put]
func (ac *AdminController) UpdateUserRole(c *fiber.Ctx) error {
	var input struct {
		Role string `json:"role"`
	}
	if err := parseBody(c, &input); err != nil {
		return err
	}
	change, err := ac.Admin.SetRole(c.UserContext(), pathParam(c, "email"), input.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "email": change.Email, "role": change.Role})
}

// DeleteUser godoc
// @Summary Delete a user and their progress
// @Description Refuses to delete the last admin
// @Tags admin
// @Produce json
// @Param email path string true "User email"
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /admin/users/{email} [delete]
func (ac *AdminController) DeleteUser(c *fiber.Ctx) error {
	if err := ac.Admin.DeleteUser(c.UserContext(), pathParam(c, "email")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "User deleted successfully"})
}

// GetStats godoc
// @Summary System statistics
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.SystemStats
// @Router /admin/stats [get]
func (ac *AdminController) GetStats(c *fiber.Ctx) error {
	stats, err := ac.Admin.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (ac *AdminController) GetAPIKeyStats(c *fiber.Ctx) error {
	return c.JSON(ac.Admin.APIKeyStats())
}

func (ac *AdminController) GetStories(c *fiber.Ctx) error {
	stories, err := ac.Stories.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"stories": stories, "total": len(stories)})
}

// CreateStory godoc
// @Summary Create a story
// @Tags admin
// @Accept json
// @Produce json
// @Param story body services.StoryInput true "Story with chapters and questions"
// @Security ApiKeyAuth
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Router /admin/stories [post]
func (ac *AdminController) CreateStory(c *fiber.Ctx) error {
	var input services.StoryInput
	if err := parseBody(c, &input); err != nil {
		return err
	}
	story, err := ac.Stories.Create(c.UserContext(), input)
	if err != nil {
		return err
	}
	return utils.Created(c, fiber.Map{"success": true, "story": story})
}

func (ac *AdminController) UpdateStory(c *fiber.Ctx) error {
	var input services.StoryUpdate
	if err := parseBody(c, &input); err != nil {
		return err
	}
	story, err := ac.Stories.Update(c.UserContext(), c.Params("storyId"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "story": story})
}

// DeleteStory removes the story along with every reader's progress on it.
func (ac *AdminController) DeleteStory(c *fiber.Ctx) error {
	if err := ac.Stories.Delete(c.UserContext(), c.Params("storyId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Story deleted successfully"})
}

func (ac *AdminController) GetProgress(c *fiber.Ctx) error {
	progress, err := ac.Admin.Progress(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"progress": progress, "total": len(progress)})
}
