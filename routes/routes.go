package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"discoverly/config"
	controller "discoverly/controllers"
	"discoverly/middleware"
	"discoverly/services"
)

const accessLogFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n"

// NewApp builds the Fiber app with the shared middleware stack and every route.
// A nil limiterStorage keeps rate limit counters in memory.
func NewApp(svc *services.Services, cfg config.Config, limiterStorage fiber.Storage) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "discoverly",
		ErrorHandler: controller.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins
	app.Use(middleware.CORS(corsConfig))
	app.Use(logger.New(logger.Config{
		Format: accessLogFormat,
	}))

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	SetupRoutes(app, svc, cfg, limiterStorage)
	app.Use(controller.NotFoundHandler)
	return app
}

func SetupRoutes(app *fiber.App, svc *services.Services, cfg config.Config, limiterStorage fiber.Storage) {
	secret := []byte(cfg.AuthJWTSecret)
	protected := middleware.Protected(svc.Users, secret)
	optional := middleware.Optional(svc.Users, secret)

	userController := controller.NewUserController(svc, log.New(os.Stdout, "USER: ", log.LstdFlags))
	programController := controller.NewProgramController(svc, log.New(os.Stdout, "PROGRAM: ", log.LstdFlags))
	membershipController := controller.NewMembershipController(svc, log.New(os.Stdout, "MEMBERSHIP: ", log.LstdFlags))
	feedbackController := controller.NewFeedbackController(svc, log.New(os.Stdout, "FEEDBACK: ", log.LstdFlags))
	featureController := controller.NewFeatureController(svc, log.New(os.Stdout, "FEATURE: ", log.LstdFlags))
	pointsController := controller.NewPointsController(svc, log.New(os.Stdout, "POINTS: ", log.LstdFlags))
	rewardController := controller.NewRewardController(svc, log.New(os.Stdout, "REWARD: ", log.LstdFlags))

	feedbackLimiter := middleware.RateLimiter("feedback", cfg.RateLimit.FeedbackPerMinute, limiterStorage)
	voteLimiter := middleware.RateLimiter("votes", cfg.RateLimit.VotesPerMinute, limiterStorage)

	// User routes
	users := app.Group("/users", protected)
	users.Get("/me", userController.GetCurrentUser)
	users.Patch("/me/role", userController.UpdateRole)

	// Product routes
	products := app.Group("/products", protected)
	products.Post("/", userController.CreateProduct)
	products.Post("/:id/beta-test", userController.SignupForProductBeta)
	products.Get("/:id/beta-testers", userController.GetProductTesters)

	beta := app.Group("/beta")

	// Program routes
	programs := beta.Group("/programs")
	programs.Get("/", programController.ListPrograms)
	programs.Post("/", protected, programController.CreateProgram)
	programs.Get("/mine", protected, programController.MyPrograms)
	programs.Get("/:id", programController.GetProgram)
	programs.Patch("/:id", protected, programController.UpdateProgram)
	programs.Delete("/:id", protected, programController.DeleteProgram)
	programs.Get("/:id/testers", protected, programController.GetTesters)
	programs.Get("/:id/analytics", protected, programController.GetAnalytics)

	// Membership routes
	beta.Post("/join", protected, membershipController.JoinProgram)
	beta.Get("/participations", protected, membershipController.MyParticipations)
	testers := beta.Group("/testers", protected)
	testers.Post("/:id/approve", membershipController.ApproveTester)
	testers.Post("/:id/decline", membershipController.DeclineTester)
	testers.Post("/:id/complete", membershipController.CompleteTester)

	// Feedback routes
	feedback := beta.Group("/feedback")
	feedback.Get("/", feedbackController.ListFeedback)
	feedback.Post("/", protected, feedbackLimiter, feedbackController.SubmitFeedback)
	feedback.Patch("/:id", protected, feedbackController.UpdateFeedback)
	feedback.Delete("/:id", protected, feedbackController.DeleteFeedback)

	// Feature request routes
	features := beta.Group("/features")
	features.Get("/", optional, featureController.ListFeatures)
	features.Post("/", protected, featureController.CreateFeature)
	features.Patch("/:id", protected, featureController.UpdateFeature)
	features.Delete("/:id", protected, featureController.DeleteFeature)
	features.Post("/:id/vote", protected, voteLimiter, featureController.Vote)
	features.Get("/:id/vote", protected, featureController.MyVote)

	// Points routes
	beta.Get("/leaderboard", pointsController.Leaderboard)
	beta.Get("/stats", protected, pointsController.MyStats)

	// Reward routes
	rewards := beta.Group("/rewards", protected)
	rewards.Get("/", rewardController.MyRewards)
	rewards.Post("/", rewardController.IssueReward)
	rewards.Get("/:id", rewardController.GetReward)
	rewards.Post("/:id/claim", rewardController.ClaimReward)
}
