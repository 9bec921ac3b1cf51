// Package domain defines the persistence models for accounts, doctor
// profiles, appointments, medical reports, payment transactions, and chat
// messages. These types are mapped with GORM and form the core data layer
// of the telehealth backend.
package domain

import (
	"time"
)

// User roles.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// Appointment statuses.
const (
	AppointmentRequested = "requested"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// Appointment payment statuses.
const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
	PaymentFailed   = "failed"
)

// Transaction statuses.
const (
	TxPending   = "pending"
	TxSucceeded = "succeeded"
	TxFailed    = "failed"
)

// Payment providers.
const (
	ProviderStripe   = "stripe"
	ProviderRazorpay = "razorpay"
)

// User is an account. Identity is immutable; Verified is flipped by the
// admin doctor-verification cascade.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique, stored lowercased.
//   - PasswordHash: bcrypt hash, never serialized.
//   - Role: patient, doctor or admin (enforced by DB constraint).
type User struct {
	ID           string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"      gorm:"type:varchar(255);not null"`
	Email        string    `json:"email"     gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"         gorm:"type:varchar(255);not null"`
	Role         string    `json:"role"      gorm:"type:varchar(16);not null;default:'patient';check:role IN ('patient','doctor','admin')"`
	Verified     bool      `json:"verified"  gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// UserRef is the public projection of a User embedded in other resources.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TableName maps UserRef onto the users table.
func (UserRef) TableName() string { return "users" }

// DoctorProfile is the one-to-one professional profile of a doctor user.
type DoctorProfile struct {
	ID             string         `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID         string         `json:"userId"         gorm:"type:char(36);not null;uniqueIndex:ux_doctor_user"`
	Specialization string         `json:"specialization" gorm:"type:varchar(255)"`
	Experience     int            `json:"experience"`
	Fees           float64        `json:"fees"`
	Bio            string         `json:"bio"            gorm:"type:text"`
	Verified       bool           `json:"verified"       gorm:"not null;default:false"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	User           *UserRef       `json:"user,omitempty"    gorm:"foreignKey:UserID;references:ID"`
	Ratings        []DoctorRating `json:"ratings,omitempty" gorm:"foreignKey:DoctorID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for DoctorProfile.
func (DoctorProfile) TableName() string { return "doctor_profiles" }

// DoctorRating is a patient's score for a doctor. A patient holds at most
// one rating per doctor.
type DoctorRating struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	DoctorID  string    `json:"doctorId"  gorm:"type:char(36);not null;index;uniqueIndex:ux_rating_doctor_patient"`
	PatientID string    `json:"patientId" gorm:"type:char(36);not null;uniqueIndex:ux_rating_doctor_patient"`
	Score     int       `json:"score"     gorm:"not null;check:score BETWEEN 1 AND 5"`
	Comment   string    `json:"comment"   gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for DoctorRating.
func (DoctorRating) TableName() string { return "doctor_ratings" }

// Appointment links a patient and a doctor (both users) at a date. Status
// and PaymentStatus evolve independently.
type Appointment struct {
	ID            string    `json:"id"            gorm:"type:char(36);primaryKey"`
	PatientID     string    `json:"patientId"     gorm:"type:char(36);not null;index:idx_appt_patient"`
	DoctorID      string    `json:"doctorId"      gorm:"type:char(36);not null;index:idx_appt_doctor"`
	Date          time.Time `json:"date"          gorm:"not null"`
	Status        string    `json:"status"        gorm:"type:varchar(16);not null;default:'requested'"`
	PaymentStatus string    `json:"paymentStatus" gorm:"type:varchar(16);not null;default:'unpaid'"`
	Reason        string    `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Patient *UserRef `json:"patient,omitempty" gorm:"foreignKey:PatientID;references:ID"`
	Doctor  *UserRef `json:"doctor,omitempty"  gorm:"foreignKey:DoctorID;references:ID"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// Report is an uploaded medical document. Analysis stays nil until an AI
// pass succeeds and is overwritten by every later successful pass.
type Report struct {
	ID         string     `json:"id"         gorm:"type:char(36);primaryKey"`
	PatientID  string     `json:"patientId"  gorm:"type:char(36);not null;index:idx_report_patient_created,priority:1"`
	FileName   string     `json:"fileName"   gorm:"type:varchar(255);not null"`
	URL        string     `json:"url"        gorm:"type:text;not null"`
	FileType   string     `json:"fileType"   gorm:"type:varchar(128)"`
	Size       int64      `json:"size"`
	Storage    string     `json:"storage"    gorm:"type:varchar(16)"`
	StorageKey string     `json:"-"          gorm:"type:text"`
	UploadedAt time.Time  `json:"uploadedAt"`
	Analysis   *string    `json:"analysis"   gorm:"type:text"`
	AnalyzedAt *time.Time `json:"analyzedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"  gorm:"index:idx_report_patient_created,priority:2"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string { return "reports" }

// Transaction is a local record of a payment intent. ProviderID correlates
// it with the processor's intent; ClientSecret is kept only so idempotent
// replays can return it again.
type Transaction struct {
	ID            string    `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID        string    `json:"userId"        gorm:"type:char(36);not null;index:idx_tx_user"`
	Amount        float64   `json:"amount"        gorm:"not null"`
	Currency      string    `json:"currency"      gorm:"type:varchar(8);not null;default:'usd'"`
	Provider      string    `json:"provider"      gorm:"type:varchar(16);not null;default:'stripe';check:provider IN ('stripe','razorpay')"`
	ProviderID    string    `json:"providerId"    gorm:"type:varchar(255);index:idx_tx_provider"`
	AppointmentID *string   `json:"appointmentId" gorm:"type:char(36)"`
	Status        string    `json:"status"        gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','succeeded','failed')"`
	ClientSecret  string    `json:"-"             gorm:"type:text"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Transaction.
func (Transaction) TableName() string { return "transactions" }

// ChatMessage is a persisted chat message. It is never mutated.
type ChatMessage struct {
	ID        string    `json:"id"        bson:"_id"       gorm:"type:char(36);primaryKey"`
	From      string    `json:"from"      bson:"from"      gorm:"column:from_user;type:char(36);not null;index:idx_chat_pair,priority:1"`
	To        string    `json:"to"        bson:"to"        gorm:"column:to_user;type:char(36);not null;index:idx_chat_pair,priority:2"`
	Text      string    `json:"text"      bson:"text"      gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" gorm:"index:idx_chat_pair,priority:3"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// WebhookEvent records a processed payment-provider event id so duplicate
// deliveries are acknowledged without reapplying state changes.
type WebhookEvent struct {
	ID         string    `gorm:"type:varchar(255);primaryKey"`
	Type       string    `gorm:"type:varchar(128);not null"`
	ReceivedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for WebhookEvent.
func (WebhookEvent) TableName() string { return "webhook_events" }
