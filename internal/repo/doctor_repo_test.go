package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

func TestDoctorProfile_CreateGetList(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.DoctorProfile{}, &domain.DoctorRating{})
	ctx := context.Background()

	u1, _ := CreateUser(ctx, db, "Dr One", "one@x.io", "h", domain.RoleDoctor)
	u2, _ := CreateUser(ctx, db, "Dr Two", "two@x.io", "h", domain.RoleDoctor)

	p1 := &domain.DoctorProfile{UserID: u1.ID, Specialization: "Cardiology", Experience: 10, Fees: 50}
	if err := CreateDoctorProfile(ctx, db, p1); err != nil {
		t.Fatalf("create p1: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	p2 := &domain.DoctorProfile{UserID: u2.ID, Specialization: "Dermatology"}
	if err := CreateDoctorProfile(ctx, db, p2); err != nil {
		t.Fatalf("create p2: %v", err)
	}

	// one profile per user
	if err := CreateDoctorProfile(ctx, db, &domain.DoctorProfile{UserID: u1.ID}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	list, err := ListDoctorProfiles(ctx, db)
	if err != nil {
		t.Fatalf("ListDoctorProfiles: %v", err)
	}
	if len(list) != 2 || list[0].ID != p1.ID || list[1].ID != p2.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].User == nil || list[0].User.Name != "Dr One" || list[0].User.Email != "one@x.io" {
		t.Fatalf("expected preloaded user summary, got %+v", list[0].User)
	}

	byUser, err := GetDoctorProfileByUser(ctx, db, u2.ID)
	if err != nil || byUser.ID != p2.ID {
		t.Fatalf("GetDoctorProfileByUser: got=%+v err=%v", byUser, err)
	}
	if _, err := GetDoctorProfile(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertRating_ReplacesPreviousScore(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.DoctorProfile{}, &domain.DoctorRating{})
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "Dr", "dr@x.io", "h", domain.RoleDoctor)
	p := &domain.DoctorProfile{UserID: u.ID}
	if err := CreateDoctorProfile(ctx, db, p); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	if _, err := UpsertRating(ctx, db, p.ID, "pat1", 3, "ok"); err != nil {
		t.Fatalf("first rating: %v", err)
	}
	if _, err := UpsertRating(ctx, db, p.ID, "pat1", 5, "great"); err != nil {
		t.Fatalf("second rating: %v", err)
	}
	if _, err := UpsertRating(ctx, db, p.ID, "pat2", 4, ""); err != nil {
		t.Fatalf("other patient rating: %v", err)
	}

	got, err := GetDoctorProfile(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("GetDoctorProfile: %v", err)
	}
	if len(got.Ratings) != 2 {
		t.Fatalf("ratings = %d; want 2", len(got.Ratings))
	}
	for _, r := range got.Ratings {
		if r.PatientID == "pat1" && (r.Score != 5 || r.Comment != "great") {
			t.Fatalf("expected pat1 rating replaced, got %+v", r)
		}
	}
}

func TestSetDoctorVerified(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.DoctorProfile{}, &domain.DoctorRating{})
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "Dr", "dr@x.io", "h", domain.RoleDoctor)
	p := &domain.DoctorProfile{UserID: u.ID}
	_ = CreateDoctorProfile(ctx, db, p)

	if err := SetDoctorVerified(ctx, db, p.ID, true); err != nil {
		t.Fatalf("SetDoctorVerified: %v", err)
	}
	got, _ := GetDoctorProfile(ctx, db, p.ID)
	if !got.Verified {
		t.Fatalf("expected verified profile")
	}
	if err := SetDoctorVerified(ctx, db, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
