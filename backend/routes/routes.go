package routes

import (
	"memorymaze/backend/cache"
	"memorymaze/backend/config"
	"memorymaze/backend/controllers"
	"memorymaze/backend/middleware"
	"memorymaze/backend/services"
	"memorymaze/backend/storage"
	"memorymaze/backend/utils"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Dependencies are the long-lived components the routes are built from.
// Judge and Keys may be nil when no AI provider is configured.
type Dependencies struct {
	Config    *config.Config
	Store     storage.Store
	Cache     cache.Store
	Log       *utils.Logger
	Assistant controllers.Assistant
	Judge     services.AnswerJudge
	Keys      services.KeyStatsSource
}

// NewApp builds the fiber app with the shared middleware and every route.
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Memory Maze API",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: utils.NewErrorHandler(deps.Log, deps.Config.IsDevelopment()),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: deps.Config.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(deps.Log))

	SetupRoutes(app, deps)
	return app
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	cfg, store, log := deps.Config, deps.Store, deps.Log

	stats := services.NewStatsEngine(store, store)
	storyService := services.NewStoryService(store, store, log)

	app.Get("/api/health", controllers.Health)

	// Auth routes
	authController := controllers.NewAuthController(services.NewAuthService(store, cfg))
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(store)

	// Story routes
	storyController := controllers.NewStoryController(storyService)
	app.Get("/api/stories", storyController.GetStories)
	app.Get("/api/stories/:storyId", authMiddleware, storyController.GetStory)
	app.Get("/api/stories/:storyId/chapters/:chapterNumber", authMiddleware, storyController.GetChapter)

	// Progress routes
	progressController := controllers.NewProgressController(
		services.NewProgressService(store, stats, log),
		services.NewVerifier(store, deps.Judge, log),
	)
	progress := app.Group("/api/progress", authMiddleware)
	progress.Get("/:storyId", progressController.GetProgress)
	progress.Post("/:storyId/checkpoint", progressController.SubmitCheckpoint)
	progress.Post("/:storyId/verify", progressController.VerifyAnswers)

	// User routes
	userController := controllers.NewUserController(services.NewUserService(store, stats))
	users := app.Group("/api/users", authMiddleware)
	users.Get("/profile", userController.GetProfile)
	users.Put("/profile", userController.UpdateProfile)
	users.Put("/settings", userController.UpdateSettings)
	users.Post("/streak", userController.UpdateStreak)
	users.Post("/badge", userController.AddBadge)
	users.Post("/saved-books", userController.SaveBook)
	users.Delete("/saved-books/:storyId", userController.RemoveBook)

	// Notes routes; /all is registered before the :storyId patterns
	notesController := controllers.NewNotesController(services.NewNotesService(store))
	notes := app.Group("/api/notes", authMiddleware)
	notes.Post("/", notesController.SaveNote)
	notes.Get("/all", notesController.GetAllNotes)
	notes.Get("/:storyId/:chapterNumber", notesController.GetNote)
	notes.Get("/:storyId", notesController.GetStoryNotes)

	// Chat routes
	chatController := controllers.NewChatController(deps.Assistant)
	chat := app.Group("/api/chat", authMiddleware)
	chat.Post("/message", middleware.RateLimiter(middleware.ChatLimit, deps.Cache), chatController.SendMessage)
	chat.Post("/recommendations", middleware.RateLimiter(middleware.RecommendationsLimit, deps.Cache), chatController.GetRecommendations)

	// Admin routes
	adminController := controllers.NewAdminController(services.NewAdminService(store, deps.Keys, log), storyService)
	admin := app.Group("/api/admin", authMiddleware, adminMiddleware)
	admin.Get("/users", adminController.GetUsers)
	admin.Put("/users/:email/role", adminController.UpdateUserRole)
	admin.Delete("/users/:email", adminController.DeleteUser)
	admin.Get("/stats", adminController.GetStats)
	admin.Get("/api-keys/stats", adminController.GetAPIKeyStats)
	admin.Get("/stories", adminController.GetStories)
	admin.Post("/stories", adminController.CreateStory)
	admin.Put("/stories/:storyId", adminController.UpdateStory)
	admin.Delete("/stories/:storyId", adminController.DeleteStory)
	admin.Get("/progress", adminController.GetProgress)
}
