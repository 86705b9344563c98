package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"discoverly/models"
	"discoverly/services/mock"
	"discoverly/testutil"
)

func TestMembershipService_Join(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		access     string
		wantStatus string
		wantPoints int
		wantMsg    string
	}{
		{"open program approves at once", models.AccessOpen, models.TesterApproved, 10, msgJoined},
		{"approval program waits for builder", models.AccessApproval, models.TesterPending, 0, msgApplied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			svc := newTestServices(t, db)

			builder := testutil.CreateUser(t, db, models.RoleBuilder)
			user := testutil.CreateUser(t, db, models.RoleUser)
			product := testutil.CreateProduct(t, db, builder, models.ProductLive)
			program := testutil.CreateProgram(t, db, builder, product, testutil.WithAccess(tt.access))

			got, err := svc.Membership.Join(ctx, user, JoinInput{BetaProgramID: program.ID, ProductID: product.ID})
			mustNoErr(t, err)

			if got.Tester.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Tester.Status, tt.wantStatus)
			}
			if got.PointsEarned != tt.wantPoints {
				t.Errorf("points = %d, want %d", got.PointsEarned, tt.wantPoints)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
			if got.Tester.DeviceType != models.DefaultDeviceType || got.Tester.ExperienceLevel != models.DefaultExperienceLevel {
				t.Errorf("profile defaults not applied: %+v", got.Tester)
			}
			if total := totalPoints(t, db, user.ID); total != int64(tt.wantPoints) {
				t.Errorf("ledger total = %d, want %d", total, tt.wantPoints)
			}
		})
	}
}

func TestMembershipService_JoinTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)

	in := JoinInput{BetaProgramID: program.ID, ProductID: product.ID}
	_, err := svc.Membership.Join(ctx, user, in)
	mustNoErr(t, err)

	_, err = svc.Membership.Join(ctx, user, in)
	assertKind(t, err, KindConflict)

	if n := countRows(t, db, &models.BetaTester{}, "user_id = ? AND beta_program_id = ?", user.ID, program.ID); n != 1 {
		t.Errorf("membership rows = %d, want 1", n)
	}
	if n := countRows(t, db, &models.TesterPoints{}, "user_id = ?", user.ID); n != 1 {
		t.Errorf("points rows = %d, want 1", n)
	}
}

func TestMembershipService_JoinCapacity(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	const capacity = 3
	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product, testutil.WithMaxTesters(capacity))

	for i := 0; i < capacity; i++ {
		u := testutil.CreateUser(t, db, models.RoleUser)
		_, err := svc.Membership.Join(ctx, u, JoinInput{BetaProgramID: program.ID, ProductID: product.ID})
		mustNoErr(t, err)
	}

	late := testutil.CreateUser(t, db, models.RoleUser)
	_, err := svc.Membership.Join(ctx, late, JoinInput{BetaProgramID: program.ID, ProductID: product.ID})
	assertKind(t, err, KindCapacityExceeded)

	if n := countRows(t, db, &models.BetaTester{}, "beta_program_id = ?", program.ID); n != capacity {
		t.Errorf("members = %d, want %d", n, capacity)
	}
}

func TestMembershipService_JoinRejects(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	paused := testutil.CreateProgram(t, db, builder, product, testutil.WithStatus(models.ProgramPaused))
	active := testutil.CreateProgram(t, db, builder, product)

	tests := []struct {
		name   string
		caller *models.User
		in     JoinInput
		want   Kind
	}{
		{"anonymous", nil, JoinInput{BetaProgramID: active.ID, ProductID: product.ID}, KindUnauthorized},
		{"missing program", user, JoinInput{ProductID: product.ID}, KindInvalidInput},
		{"missing product", user, JoinInput{BetaProgramID: active.ID}, KindInvalidInput},
		{"unknown program", user, JoinInput{BetaProgramID: 9999, ProductID: product.ID}, KindNotFound},
		{"inactive program", user, JoinInput{BetaProgramID: paused.ID, ProductID: product.ID}, KindNotFound},
		{"product mismatch", user, JoinInput{BetaProgramID: active.ID, ProductID: product.ID + 1}, KindInvalidInput},
		{"bad experience level", user, JoinInput{BetaProgramID: active.ID, ProductID: product.ID, ExperienceLevel: "guru"}, KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Membership.Join(ctx, tt.caller, tt.in)
			assertKind(t, err, tt.want)
		})
	}

	if n := countRows(t, db, &models.BetaTester{}, "user_id = ?", user.ID); n != 0 {
		t.Errorf("rejected joins left %d rows", n)
	}
}

func TestMembershipService_JoinRollsBackWhenAwardFails(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	awarder := mock.NewMockPointsAwarder(gomock.NewController(t))
	awarder.EXPECT().Award(gomock.Any(), gomock.Any()).Return(errors.New("ledger unavailable"))
	svc := newTestServices(t, db, withAwarder(awarder))

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)

	_, err := svc.Membership.Join(ctx, user, JoinInput{BetaProgramID: program.ID, ProductID: product.ID})
	assertKind(t, err, KindInternal)

	if n := countRows(t, db, &models.BetaTester{}, "user_id = ?", user.ID); n != 0 {
		t.Errorf("membership survived a failed award: %d rows", n)
	}
}

func TestMembershipService_Approve(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	notifier := mock.NewMockNotifier(gomock.NewController(t))
	svc := newTestServices(t, db, withNotifier(notifier))

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	stranger := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product, testutil.WithAccess(models.AccessApproval))
	tester := testutil.CreateTester(t, db, user, program, models.TesterPending)

	t.Run("unknown tester", func(t *testing.T) {
		_, err := svc.Membership.Approve(ctx, builder, 9999)
		assertKind(t, err, KindNotFound)
	})

	t.Run("not the builder", func(t *testing.T) {
		_, err := svc.Membership.Approve(ctx, stranger, tester.ID)
		assertKind(t, err, KindForbidden)
		if got := reloadTester(t, db, tester.ID); got.Status != models.TesterPending {
			t.Errorf("status changed to %s", got.Status)
		}
	})

	t.Run("builder approves", func(t *testing.T) {
		notifier.EXPECT().
			Send(user.Email, gomock.Any(), "tester_approved", gomock.Any()).
			Return(nil)

		got, err := svc.Membership.Approve(ctx, builder, tester.ID)
		mustNoErr(t, err)
		if got.Status != models.TesterApproved {
			t.Errorf("status = %s, want approved", got.Status)
		}
		if got.ApprovedAt == nil || !got.ApprovedAt.Equal(fixedNow) {
			t.Errorf("approved_at = %v, want %v", got.ApprovedAt, fixedNow)
		}
	})

	t.Run("approving again is a no-op", func(t *testing.T) {
		got, err := svc.Membership.Approve(ctx, builder, tester.ID)
		mustNoErr(t, err)
		if got.Status != models.TesterApproved {
			t.Errorf("status = %s, want approved", got.Status)
		}
	})
}

func TestMembershipService_ApproveSurvivesMailFailure(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	notifier := mock.NewMockNotifier(gomock.NewController(t))
	notifier.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))
	svc := newTestServices(t, db, withNotifier(notifier))

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product, testutil.WithAccess(models.AccessApproval))
	tester := testutil.CreateTester(t, db, user, program, models.TesterPending)

	_, err := svc.Membership.Approve(ctx, builder, tester.ID)
	mustNoErr(t, err)
	if got := reloadTester(t, db, tester.ID); got.Status != models.TesterApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
}

func TestMembershipService_ApproveRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product,
		testutil.WithAccess(models.AccessApproval), testutil.WithMaxTesters(1))

	testutil.CreateTester(t, db, testutil.CreateUser(t, db, models.RoleUser), program, models.TesterApproved)
	waiting := testutil.CreateTester(t, db, testutil.CreateUser(t, db, models.RoleUser), program, models.TesterPending)

	_, err := svc.Membership.Approve(ctx, builder, waiting.ID)
	assertKind(t, err, KindCapacityExceeded)
}

func TestMembershipService_DeclineAndComplete(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)

	alice := testutil.CreateUser(t, db, models.RoleUser)
	active := testutil.CreateTester(t, db, alice, program, models.TesterActive)

	got, err := svc.Membership.Complete(ctx, builder, active.ID)
	mustNoErr(t, err)
	if got.Status != models.TesterCompleted || got.Progress != 100 || got.CompletedAt == nil {
		t.Errorf("unexpected completed tester: %+v", got)
	}
	if total := totalPoints(t, db, alice.ID); total != int64(models.PointsRewards[models.ActionCompletedBeta]) {
		t.Errorf("completion points = %d", total)
	}

	_, err = svc.Membership.Decline(ctx, builder, active.ID)
	assertKind(t, err, KindInvalidInput)

	bob := testutil.CreateUser(t, db, models.RoleUser)
	pending := testutil.CreateTester(t, db, bob, program, models.TesterPending)
	_, err = svc.Membership.Complete(ctx, builder, pending.ID)
	assertKind(t, err, KindInvalidInput)

	declined, err := svc.Membership.Decline(ctx, builder, pending.ID)
	mustNoErr(t, err)
	if declined.Status != models.TesterDeclined {
		t.Errorf("status = %s, want declined", declined.Status)
	}
}

func TestMembershipService_ListTesters(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)
	testutil.CreateTester(t, db, testutil.CreateUser(t, db, models.RoleUser), program, models.TesterPending)
	testutil.CreateTester(t, db, testutil.CreateUser(t, db, models.RoleUser), program, models.TesterApproved)

	all, err := svc.Membership.ListTesters(ctx, builder, program.ID, "")
	mustNoErr(t, err)
	if len(all) != 2 {
		t.Fatalf("testers = %d, want 2", len(all))
	}
	if all[0].Email == "" {
		t.Error("expected member email to be joined in")
	}

	pending, err := svc.Membership.ListTesters(ctx, builder, program.ID, models.TesterPending)
	mustNoErr(t, err)
	if len(pending) != 1 || pending[0].Status != models.TesterPending {
		t.Errorf("pending filter returned %+v", pending)
	}

	_, err = svc.Membership.ListTesters(ctx, testutil.CreateUser(t, db, models.RoleBuilder), program.ID, "")
	assertKind(t, err, KindForbidden)
}

func TestMembershipService_MyParticipations(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)
	testutil.CreateTester(t, db, user, program, models.TesterActive)

	got, err := svc.Membership.MyParticipations(ctx, user)
	mustNoErr(t, err)
	if len(got) != 1 {
		t.Fatalf("participations = %d, want 1", len(got))
	}
	if got[0].ProgramTitle == nil || *got[0].ProgramTitle != program.Title {
		t.Errorf("program title = %v, want %s", got[0].ProgramTitle, program.Title)
	}
}

func TestMembershipService_SignupForProduct(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	maker := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	live := testutil.CreateProduct(t, db, maker, models.ProductLive)
	draft := testutil.CreateProduct(t, db, maker, models.ProductDraft)

	tester, err := svc.Membership.SignupForProduct(ctx, user, live.ID)
	mustNoErr(t, err)
	if tester.Status != models.TesterPending || tester.BetaProgramID != nil {
		t.Errorf("unexpected signup: %+v", tester)
	}

	_, err = svc.Membership.SignupForProduct(ctx, user, live.ID)
	assertKind(t, err, KindConflict)

	_, err = svc.Membership.SignupForProduct(ctx, user, draft.ID)
	assertKind(t, err, KindNotFound)

	approved, err := svc.Membership.Approve(ctx, maker, tester.ID)
	mustNoErr(t, err)
	if approved.Status != models.TesterApproved {
		t.Errorf("maker approval status = %s", approved.Status)
	}
}

func TestMembershipService_ListProductTesters(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	maker := testutil.CreateUser(t, db, models.RoleBuilder)
	stranger := testutil.CreateUser(t, db, models.RoleBuilder)
	admin := testutil.CreateUser(t, db, models.RoleAdmin)
	first := testutil.CreateUser(t, db, models.RoleUser)
	second := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, maker, models.ProductLive)
	other := testutil.CreateProduct(t, db, maker, models.ProductLive)
	program := testutil.CreateProgram(t, db, maker, product)

	signup, err := svc.Membership.SignupForProduct(ctx, first, product.ID)
	mustNoErr(t, err)
	member := testutil.CreateTester(t, db, second, program, models.TesterApproved)
	_, err = svc.Membership.SignupForProduct(ctx, second, other.ID)
	mustNoErr(t, err)

	testers, err := svc.Membership.ListProductTesters(ctx, maker, product.ID, "")
	mustNoErr(t, err)
	if len(testers) != 2 || testers[0].ID != member.ID || testers[1].ID != signup.ID {
		t.Fatalf("product testers = %+v", testers)
	}
	if testers[1].Email != first.Email {
		t.Errorf("signup email = %q, want %q", testers[1].Email, first.Email)
	}

	pending, err := svc.Membership.ListProductTesters(ctx, maker, product.ID, models.TesterPending)
	mustNoErr(t, err)
	if len(pending) != 1 || pending[0].ID != signup.ID {
		t.Fatalf("pending testers = %+v", pending)
	}

	_, err = svc.Membership.Approve(ctx, maker, pending[0].ID)
	mustNoErr(t, err)
	pending, err = svc.Membership.ListProductTesters(ctx, maker, product.ID, models.TesterPending)
	mustNoErr(t, err)
	if len(pending) != 0 {
		t.Errorf("pending after approve = %d, want 0", len(pending))
	}

	_, err = svc.Membership.ListProductTesters(ctx, admin, product.ID, "")
	mustNoErr(t, err)
	_, err = svc.Membership.ListProductTesters(ctx, stranger, product.ID, "")
	assertKind(t, err, KindForbidden)
	_, err = svc.Membership.ListProductTesters(ctx, nil, product.ID, "")
	assertKind(t, err, KindForbidden)
	_, err = svc.Membership.ListProductTesters(ctx, maker, 9999, "")
	assertKind(t, err, KindNotFound)
}

func TestMembershipService_ProductSignupIsUnique(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	maker := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, maker, models.ProductLive)
	program := testutil.CreateProgram(t, db, maker, product)

	_, err := svc.Membership.SignupForProduct(ctx, user, product.ID)
	mustNoErr(t, err)

	// a second writer that skipped the existence check
	dup := &models.BetaTester{UserID: user.ID, ProductID: product.ID, Status: models.TesterPending}
	err = db.Create(dup).Error
	if !isUniqueViolation(err) {
		t.Fatalf("duplicate product signup insert: err = %v, want unique violation", err)
	}

	// program memberships of the same product are unaffected
	testutil.CreateTester(t, db, user, program, models.TesterApproved)
	if n := countRows(t, db, &models.BetaTester{}, "user_id = ? AND product_id = ?", user.ID, product.ID); n != 2 {
		t.Errorf("memberships = %d, want 2", n)
	}
}
