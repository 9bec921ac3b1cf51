package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

func TestAppointment_CreateListUpdate(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.Appointment{})
	ctx := context.Background()

	pat, _ := CreateUser(ctx, db, "Pat", "pat@x.io", "h", domain.RolePatient)
	doc, _ := CreateUser(ctx, db, "Doc", "doc@x.io", "h", domain.RoleDoctor)
	other, _ := CreateUser(ctx, db, "Oth", "oth@x.io", "h", domain.RolePatient)

	later := time.Date(2030, 5, 2, 10, 0, 0, 0, time.UTC)
	sooner := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

	a1, err := CreateAppointment(ctx, db, pat.ID, doc.ID, later, "checkup")
	if err != nil {
		t.Fatalf("create a1: %v", err)
	}
	if a1.Status != domain.AppointmentRequested || a1.PaymentStatus != domain.PaymentUnpaid {
		t.Fatalf("unexpected defaults: %+v", a1)
	}
	a2, err := CreateAppointment(ctx, db, pat.ID, doc.ID, sooner, "")
	if err != nil {
		t.Fatalf("create a2: %v", err)
	}
	if _, err := CreateAppointment(ctx, db, other.ID, pat.ID, sooner, ""); err != nil {
		t.Fatalf("create unrelated: %v", err)
	}

	// doctor sees both, ordered by date
	list, err := ListAppointmentsForUser(ctx, db, doc.ID)
	if err != nil {
		t.Fatalf("ListAppointmentsForUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != a2.ID || list[1].ID != a1.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].Patient == nil || list[0].Patient.Email != "pat@x.io" || list[0].Doctor == nil || list[0].Doctor.Name != "Doc" {
		t.Fatalf("expected populated participants, got %+v / %+v", list[0].Patient, list[0].Doctor)
	}

	// patient "pat" appears as patient in two and as doctor id in the third
	list, _ = ListAppointmentsForUser(ctx, db, pat.ID)
	if len(list) != 3 {
		t.Fatalf("patient list len = %d; want 3", len(list))
	}

	if err := UpdateAppointment(ctx, db, a1.ID, map[string]any{"status": domain.AppointmentCancelled}); err != nil {
		t.Fatalf("UpdateAppointment: %v", err)
	}
	got, err := GetAppointment(ctx, db, a1.ID)
	if err != nil || got.Status != domain.AppointmentCancelled {
		t.Fatalf("GetAppointment: got=%+v err=%v", got, err)
	}

	if err := UpdateAppointment(ctx, db, "missing", map[string]any{"status": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := GetAppointment(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
