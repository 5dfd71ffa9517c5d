package controllers

import (
	"memorymaze/backend/middleware"
	"memorymaze/backend/services"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	Users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{Users: users}
}

// GetProfile godoc
// @Summary Get current user profile
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.UserView
// @Failure 401 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /users/profile [get]
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	view, err := uc.Users.Profile(c.UserContext(), middleware.CurrentEmail(c))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// UpdateProfile godoc
// @Summary Update user profile
// @Description Updates username, name, avatar, bio or theme. Usernames are unique.
// @Tags user
// @Accept json
// @Produce json
// @Param request body services.ProfileInput true "Profile fields"
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /users/profile [put]
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	var input services.ProfileInput
	if err := parseBody(c, &input); err != nil {
		return err
	}
	profile, err := uc.Users.UpdateProfile(c.UserContext(), middleware.CurrentEmail(c), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "profile": profile})
}

func (uc *UserController) UpdateSettings(c *fiber.Ctx) error {
	var input services.SettingsInput
	if err := parseBody(c, &input); err != nil {
		return err
	}
	settings, err := uc.Users.UpdateSettings(c.UserContext(), middleware.CurrentEmail(c), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "settings": settings})
}

// UpdateStreak records today as a reading day.
func (uc *UserController) UpdateStreak(c *fiber.Ctx) error {
	stats, err := uc.Users.UpdateStreak(c.UserContext(), middleware.CurrentEmail(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}

func (uc *UserController) AddBadge(c *fiber.Ctx) error {
	var input services.BadgeInput
	if err := parseBody(c, &input); err != nil {
		return err
	}
	res, err := uc.Users.AddBadge(c.UserContext(), middleware.CurrentEmail(c), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"badge":   res.Badge,
		"isNew":   res.IsNew,
		"stats":   res.Stats,
	})
}

func (uc *UserController) SaveBook(c *fiber.Ctx) error {
	var input struct {
		StoryID string `json:"storyId"`
	}
	if err := parseBody(c, &input); err != nil {
		return err
	}
	res, err := uc.Users.SaveBook(c.UserContext(), middleware.CurrentEmail(c), input.StoryID)
	if err != nil {
		return err
	}
	return c.JSON(savedBooksBody(res))
}

func (uc *UserController) RemoveBook(c *fiber.Ctx) error {
	res, err := uc.Users.RemoveBook(c.UserContext(), middleware.CurrentEmail(c), c.Params("storyId"))
	if err != nil {
		return err
	}
	return c.JSON(savedBooksBody(res))
}

func savedBooksBody(res *services.SavedBooksResult) fiber.Map {
	body := fiber.Map{"success": true, "savedBooks": res.SavedBooks}
	if res.Message != "" {
		body["message"] = res.Message
	}
	return body
}
