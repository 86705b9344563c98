package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"discoverly/models"
	"discoverly/services/mock"
	"discoverly/testutil"
	"discoverly/utils"
)

func TestRewardService_Issue(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	notifier := mock.NewMockNotifier(gomock.NewController(t))
	svc := newTestServices(t, db, withNotifier(notifier))

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	otherBuilder := testutil.CreateUser(t, db, models.RoleBuilder)
	admin := testutil.CreateUser(t, db, models.RoleAdmin)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)
	tester := testutil.CreateTester(t, db, user, program, models.TesterCompleted)

	in := IssueRewardInput{
		BetaProgramID: program.ID,
		TesterID:      tester.ID,
		RewardType:    "gift_card",
		RewardDetails: map[string]interface{}{"amount": 25},
		ExpiresAt:     utils.Pointer(fixedNow.Add(72 * time.Hour)),
	}

	denied := []struct {
		name   string
		caller *models.User
		want   Kind
	}{
		{"anonymous", nil, KindUnauthorized},
		{"plain user", user, KindForbidden},
		{"builder of another program", otherBuilder, KindForbidden},
	}
	for _, tt := range denied {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Rewards.Issue(ctx, tt.caller, in)
			assertKind(t, err, tt.want)
		})
	}

	t.Run("tester outside program", func(t *testing.T) {
		other := testutil.CreateProgram(t, db, builder, product)
		bad := in
		bad.BetaProgramID = other.ID
		_, err := svc.Rewards.Issue(ctx, builder, bad)
		assertKind(t, err, KindNotFound)
	})

	t.Run("owning builder", func(t *testing.T) {
		notifier.EXPECT().
			Send(user.Email, gomock.Any(), utils.TemplateRewardIssued, gomock.Any()).
			Return(nil)

		got, err := svc.Rewards.Issue(ctx, builder, in)
		mustNoErr(t, err)
		if got.Status != models.RewardPending || got.UserID != user.ID || got.TesterID != tester.ID {
			t.Errorf("unexpected reward: %+v", got)
		}
	})

	t.Run("admin", func(t *testing.T) {
		notifier.EXPECT().Send(user.Email, gomock.Any(), utils.TemplateRewardIssued, gomock.Any()).Return(nil)

		_, err := svc.Rewards.Issue(ctx, admin, in)
		mustNoErr(t, err)
	})

	if n := countRows(t, db, &models.BetaReward{}, "user_id = ?", user.ID); n != 2 {
		t.Errorf("rewards = %d, want 2", n)
	}
}

func TestRewardService_Claim(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)
	tester := testutil.CreateTester(t, db, user, program, models.TesterCompleted)
	reward := testutil.CreateReward(t, db, tester, utils.Pointer(fixedNow.Add(24*time.Hour)))

	_, err := svc.Rewards.Claim(ctx, builder, reward.ID)
	assertKind(t, err, KindForbidden)

	got, err := svc.Rewards.Claim(ctx, user, reward.ID)
	mustNoErr(t, err)
	if got.Status != models.RewardClaimed || got.ClaimedAt == nil || !got.ClaimedAt.Equal(fixedNow) {
		t.Errorf("unexpected claimed reward: %+v", got)
	}

	reloaded := reloadTester(t, db, tester.ID)
	if !reloaded.RewardClaimed || reloaded.RewardClaimedAt == nil {
		t.Errorf("tester not marked: %+v", reloaded)
	}

	_, err = svc.Rewards.Claim(ctx, user, reward.ID)
	assertKind(t, err, KindAlreadyClaimed)

	_, err = svc.Rewards.Claim(ctx, user, 9999)
	assertKind(t, err, KindNotFound)
}

func TestRewardService_ClaimExpired(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)
	tester := testutil.CreateTester(t, db, user, program, models.TesterCompleted)
	reward := testutil.CreateReward(t, db, tester, utils.Pointer(fixedNow.Add(-time.Hour)))

	_, err := svc.Rewards.Claim(ctx, user, reward.ID)
	assertKind(t, err, KindExpired)

	var stored models.BetaReward
	if err := db.First(&stored, reward.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.RewardExpired || stored.ClaimedAt != nil {
		t.Errorf("stored reward = %+v, want expired and unclaimed", stored)
	}
	if reloadTester(t, db, tester.ID).RewardClaimed {
		t.Error("tester marked as claimed for an expired reward")
	}

	_, err = svc.Rewards.Claim(ctx, user, reward.ID)
	assertKind(t, err, KindExpired)
}

func TestRewardService_ClaimThenGetStaysClaimed(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)
	tester := testutil.CreateTester(t, db, user, program, models.TesterCompleted)

	issued, err := svc.Rewards.Issue(ctx, builder, IssueRewardInput{
		BetaProgramID: program.ID,
		TesterID:      tester.ID,
		RewardType:    "early_access",
		ExpiresAt:     utils.Pointer(fixedNow.Add(time.Minute)),
	})
	mustNoErr(t, err)

	_, err = svc.Rewards.Claim(ctx, user, issued.ID)
	mustNoErr(t, err)

	later := newTestServices(t, db, func(o *Options) {
		o.Now = func() time.Time { return fixedNow.Add(48 * time.Hour) }
	})
	got, err := later.Rewards.Get(ctx, user, issued.ID)
	mustNoErr(t, err)
	if got.Status != models.RewardClaimed {
		t.Errorf("status after expiry passed = %s, want claimed", got.Status)
	}

	viaBuilder, err := later.Rewards.Get(ctx, builder, issued.ID)
	mustNoErr(t, err)
	if viaBuilder.ID != issued.ID {
		t.Errorf("builder got reward %d", viaBuilder.ID)
	}

	_, err = later.Rewards.Get(ctx, testutil.CreateUser(t, db, models.RoleUser), issued.ID)
	assertKind(t, err, KindForbidden)
}

func TestRewardService_ListMineExpiresLazily(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newTestServices(t, db)

	builder := testutil.CreateUser(t, db, models.RoleBuilder)
	user := testutil.CreateUser(t, db, models.RoleUser)
	product := testutil.CreateProduct(t, db, builder, models.ProductLive)
	program := testutil.CreateProgram(t, db, builder, product)
	tester := testutil.CreateTester(t, db, user, program, models.TesterCompleted)

	overdue := testutil.CreateReward(t, db, tester, utils.Pointer(fixedNow.Add(-time.Minute)))
	open := testutil.CreateReward(t, db, tester, nil)

	got, err := svc.Rewards.ListMine(ctx, user)
	mustNoErr(t, err)
	if len(got) != 2 {
		t.Fatalf("rewards = %d, want 2", len(got))
	}

	statuses := map[uint]string{}
	for _, r := range got {
		statuses[r.ID] = r.Status
	}
	if statuses[overdue.ID] != models.RewardExpired || statuses[open.ID] != models.RewardPending {
		t.Errorf("statuses = %v", statuses)
	}
	if n := countRows(t, db, &models.BetaReward{}, "status = ?", models.RewardExpired); n != 1 {
		t.Errorf("persisted expired rewards = %d, want 1", n)
	}
}
