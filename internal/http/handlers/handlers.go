// Package handlers exposes the REST and WebSocket endpoints of the
// telehealth backend.
//
// Handlers are transport-thin: they bind and check input shape, call an
// application service, and translate the result (or error) into an HTTP
// response. Authentication and role checks happen in middleware; handlers
// only read the caller's identity from the Gin context.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/http/middleware"
	"github.com/tbourn/go-telehealth-backend/internal/realtime"
	"github.com/tbourn/go-telehealth-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AuthService registers and authenticates accounts.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}

// AppointmentService schedules appointments between patients and doctors.
type AppointmentService interface {
	Create(ctx context.Context, patientID string, in services.CreateAppointmentInput) (*domain.Appointment, error)
	ListMine(ctx context.Context, userID string) ([]domain.Appointment, error)
	Reschedule(ctx context.Context, userID, id, date string) (*domain.Appointment, error)
	Cancel(ctx context.Context, userID, role, id string) error
	UpdatePayment(ctx context.Context, userID, role, id, status string) (*domain.Appointment, error)
}

// DoctorService serves the doctor directory.
type DoctorService interface {
	List(ctx context.Context, query string, limit int) ([]domain.DoctorProfile, error)
	Get(ctx context.Context, id string) (*domain.DoctorProfile, error)
	CreateProfile(ctx context.Context, userID string, in services.ProfileInput) (*domain.DoctorProfile, error)
	Verify(ctx context.Context, id string) error
	Rate(ctx context.Context, patientID, id string, score int, comment string) (*domain.DoctorProfile, error)
}

// ReportService stores and lists medical reports.
type ReportService interface {
	Upload(ctx context.Context, patientID string, in services.UploadInput) (*services.UploadResult, error)
	ListMine(ctx context.Context, patientID string) ([]domain.Report, error)
	// Stats returns the caller's report count and latest update, for ETags.
	Stats(ctx context.Context, patientID string) (int64, *time.Time, error)
	Get(ctx context.Context, userID, id string) (*domain.Report, error)
}

// AnalysisService runs the AI analysis of a report.
type AnalysisService interface {
	Analyze(ctx context.Context, userID, reportID string) (string, error)
}

// PaymentService creates intents and reconciles processor webhooks.
type PaymentService interface {
	CreateIntent(ctx context.Context, userID string, in services.CreateIntentInput) (*services.IntentResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*services.WebhookResult, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// MessageService persists and publishes chat messages.
type MessageService interface {
	Send(ctx context.Context, from, to, text string) (*domain.ChatMessage, error)
	Conversation(ctx context.Context, me, other string) ([]domain.ChatMessage, error)
	ETag(ctx context.Context, me, other string) (string, error)
}

// SeedService creates development fixtures.
type SeedService interface {
	Seed(ctx context.Context) (*services.AuthResult, error)
}

// Subscriber registers socket subscriptions; satisfied by *realtime.Hub.
type Subscriber interface {
	Subscribe(userID string) *realtime.Subscription
}

//
// Handler wiring
//

// Deps lists the services behind the endpoints. A nil service leaves its
// routes unregistered by the router.
type Deps struct {
	Auth         AuthService
	Appointments AppointmentService
	Doctors      DoctorService
	Reports      ReportService
	Analysis     AnalysisService
	Payments     PaymentService
	Messages     MessageService
	Seed         SeedService

	Hub      Subscriber
	Upgrader *websocket.Upgrader

	// MaxUploadBytes is the report size cap quoted in too-large errors;
	// zero means services.DefaultMaxUploadBytes.
	MaxUploadBytes int64
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	auth     AuthService
	appts    AppointmentService
	doctors  DoctorService
	reports  ReportService
	analysis AnalysisService
	payments PaymentService
	messages MessageService
	seed     SeedService

	hub       Subscriber
	upgrader  *websocket.Upgrader
	maxUpload int64
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	up := d.Upgrader
	if up == nil {
		up = realtime.NewUpgrader(nil)
	}
	return &Handlers{
		auth:     d.Auth,
		appts:    d.Appointments,
		doctors:  d.Doctors,
		reports:  d.Reports,
		analysis: d.Analysis,
		payments: d.Payments,
		messages: d.Messages,
		seed:     d.Seed,
		hub:      d.Hub,
		upgrader: up,

		maxUpload: d.MaxUploadBytes,
	}
}

// MsgResponse is the acknowledgement body of state-changing endpoints that
// return no resource.
type MsgResponse struct {
	Msg string `json:"msg" example:"Appointment cancelled"`
}

func userID(c *gin.Context) string { return middleware.UserID(c) }
func userRole(c *gin.Context) string {
	return middleware.UserRole(c)
}
