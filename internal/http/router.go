package http

import (
	"log/slog"

	"github.com/geocoder89/sitehub/internal/auth"
	"github.com/geocoder89/sitehub/internal/config"
	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/user"
	"github.com/geocoder89/sitehub/internal/http/handlers"
	"github.com/geocoder89/sitehub/internal/http/middlewares"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "sitehub-api"

// Deps is everything the router wires into handlers. Stores may be nil in
// tests that only exercise guards, since a denied request never reaches a
// handler.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	JWT    *auth.Manager
	Access interface {
		middlewares.Authorizer
		handlers.ProjectAccess
	}
	Health map[string]handlers.Pinger

	Users         handlers.UserStore
	Sessions      handlers.SessionStore
	Projects      handlers.ProjectStore
	Members       handlers.MembershipStore
	Tasks         handlers.TaskStore
	Budget        handlers.BudgetStore
	Materials     handlers.MaterialStore
	Documents     handlers.DocumentStore
	Chat          handlers.ChatStore
	Dashboards    handlers.DashboardSource
	Notifications handlers.NotificationStore
	Jobs          handlers.JobsEnqueuer
	AdminJobs     handlers.AdminJobsRepo
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	if d.Config.OTelEnabled {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	if d.Config.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.RequireJSON())

	// ops
	health := handlers.NewHealthHandler(d.Health)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)
	r.GET("/docs/openapi.json", handlers.OpenAPIJSON)

	am := middlewares.NewAuthMiddleware(d.JWT)

	// auth
	authH := handlers.NewAuthHandler(d.Users, d.Sessions, d.JWT, d.Config)
	authGroup := r.Group("/auth")
	authGroup.POST("/signup", authH.SignUp)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/refresh", authH.Refresh)
	authGroup.POST("/logout", authH.Logout)
	authGroup.GET("/me", am.RequireAuth(), authH.Me)
	authGroup.DELETE("/me", am.RequireAuth(), authH.Deactivate)

	authed := r.Group("/", am.RequireAuth())

	notificationsH := handlers.NewNotificationsHandler(d.Notifications)
	authed.GET("/notifications", notificationsH.List)
	authed.POST("/notifications/:id/read", notificationsH.MarkRead)

	adminJobsH := handlers.NewAdminJobsHandler(d.AdminJobs)
	admin := authed.Group("/admin", am.RequirePlatformRole(user.RoleAdmin))
	admin.GET("/jobs", adminJobsH.List)
	admin.GET("/jobs/:id", adminJobsH.GetByID)
	admin.POST("/jobs/:id/retry", adminJobsH.Retry)

	registerProjectRoutes(authed, d)

	return r
}

// registerProjectRoutes mounts every project-scoped route with exactly one
// guard. Handlers assume the guard already ran.
func registerProjectRoutes(authed *gin.RouterGroup, d Deps) {
	guard := middlewares.NewProjectGuard(d.Access, d.Prom, d.Log)
	member := guard.RequireMember()
	modify := guard.RequireModify()
	owner := guard.RequireOwner()
	technician := guard.RequireRole(membership.RoleTechnician)
	engineer := guard.RequireRole(membership.RoleEngineer)

	projectsH := handlers.NewProjectsHandler(d.Projects, d.Access)
	authed.GET("/projects", projectsH.List)
	authed.POST("/projects", projectsH.Create)

	p := authed.Group("/projects/:projectId")

	p.GET("", member, projectsH.Get)
	p.GET("/access", member, projectsH.Access)
	p.PUT("", modify, projectsH.Update)
	p.DELETE("", owner, projectsH.Delete)

	membersH := handlers.NewMembersHandler(d.Members)
	p.GET("/members", member, membersH.List)
	p.GET("/members/:memberId", member, membersH.Get)
	p.POST("/members", modify, membersH.Add)
	p.PUT("/members/:memberId", modify, membersH.UpdateRole)
	p.DELETE("/members/:memberId", modify, membersH.Remove)

	tasksH := handlers.NewTasksHandler(d.Tasks)
	p.GET("/tasks", member, tasksH.List)
	p.GET("/tasks/:taskId", member, tasksH.Get)
	p.POST("/tasks", technician, tasksH.Create)
	p.PUT("/tasks/:taskId", technician, tasksH.Update)
	p.DELETE("/tasks/:taskId", engineer, tasksH.Delete)
	p.GET("/tasks/:taskId/comments", member, tasksH.ListComments)
	p.POST("/tasks/:taskId/comments", member, tasksH.AddComment)

	budgetH := handlers.NewBudgetHandler(d.Budget)
	p.GET("/budget", member, budgetH.List)
	p.GET("/budget/summary", member, budgetH.Summary)
	p.POST("/budget", engineer, budgetH.Create)
	p.PUT("/budget/:itemId", engineer, budgetH.Update)
	p.POST("/budget/:itemId/payments", engineer, budgetH.RegisterPayment)
	p.DELETE("/budget/:itemId", modify, budgetH.Delete)

	materialsH := handlers.NewMaterialsHandler(d.Materials)
	p.GET("/materials", member, materialsH.List)
	p.GET("/materials/:materialId", member, materialsH.Get)
	p.POST("/materials", technician, materialsH.Create)
	p.PUT("/materials/:materialId", technician, materialsH.Update)
	p.POST("/materials/:materialId/stock", technician, materialsH.AddStock)
	p.POST("/materials/:materialId/consume", technician, materialsH.Consume)
	p.DELETE("/materials/:materialId", engineer, materialsH.Delete)

	documentsH := handlers.NewDocumentsHandler(d.Documents)
	p.GET("/documents", member, documentsH.List)
	p.GET("/documents/:documentId/versions", member, documentsH.ListVersions)
	p.POST("/documents", technician, documentsH.Create)
	p.POST("/documents/:documentId/versions", technician, documentsH.AddVersion)
	p.DELETE("/documents/:documentId", engineer, documentsH.Delete)

	chatH := handlers.NewChatHandler(d.Chat)
	p.GET("/chat/messages", member, chatH.List)
	p.POST("/chat/messages", member, chatH.Post)
	p.DELETE("/chat/messages/:messageId", member, chatH.Delete)

	dashboardH := handlers.NewDashboardHandler(d.Dashboards)
	p.GET("/dashboard", member, dashboardH.Get)

	jobsH := handlers.NewJobsHandler(d.Jobs)
	p.POST("/progress/recalculate", modify, jobsH.RecalculateProgress)
}
