package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/gomail.v2"
)

func TestValidateStruct(t *testing.T) {
	type input struct {
		Title    string    `json:"title" validate:"required,min=3"`
		Kind     string    `json:"kind" validate:"omitempty,oneof=open approval"`
		Email    string    `json:"email" validate:"omitempty,email"`
		Start    time.Time `json:"start_date"`
		End      time.Time `json:"end_date" validate:"omitempty,gtfield=Start"`
		Internal int       `json:"-" validate:"max=2"`
	}

	now := time.Now()
	tests := []struct {
		name string
		in   input
		want string
	}{
		{"valid", input{Title: "Beta"}, ""},
		{"required", input{}, "title is required"},
		{"min", input{Title: "ab"}, "title must be at least 3"},
		{"oneof", input{Title: "Beta", Kind: "invite"}, "kind must be one of: open, approval"},
		{"email", input{Title: "Beta", Email: "nope"}, "email must be a valid email"},
		{"gtfield", input{Title: "Beta", Start: now, End: now.Add(-time.Hour)}, "end_date must be after start"},
		{"falls back to field name", input{Title: "Beta", Internal: 3}, "Internal must be at most 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestIdentityToken(t *testing.T) {
	secret := []byte("test-secret")

	token, err := SignIdentityToken("user_42", "ada@example.com", "Ada", time.Hour, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseIdentityToken(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user_42" || claims.Email != "ada@example.com" || claims.Name != "Ada" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseIdentityToken(token, []byte("other-secret")); err == nil {
		t.Error("expected failure with the wrong secret")
	}

	expired, _ := SignIdentityToken("user_42", "", "", -time.Minute, secret)
	if _, err := ParseIdentityToken(expired, secret); err == nil {
		t.Error("expected failure for an expired token")
	}

	noSubject, _ := SignIdentityToken("", "a@example.com", "", time.Hour, secret)
	if _, err := ParseIdentityToken(noSubject, secret); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("missing subject err = %v, want ErrInvalidToken", err)
	}

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_42"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := ParseIdentityToken(unsigned, secret); err == nil {
		t.Error("expected failure for alg none")
	}
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestMailer_Send(t *testing.T) {
	fake := &fakeDialer{}
	m := &Mailer{cfg: MailerConfig{FromEmail: "beta@discoverly.app", FromName: "Discoverly"}, dialer: fake}

	err := m.Send("ada@example.com", "Approved", TemplateTesterApproved, map[string]interface{}{
		"Name":    "Ada",
		"Program": "Mobile beta",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fake.sent))
	}
	if to := fake.sent[0].GetHeader("To"); len(to) != 1 || to[0] != "ada@example.com" {
		t.Errorf("To = %v", to)
	}

	if err := m.Send("not-an-address", "Approved", TemplateTesterApproved, nil); err == nil {
		t.Error("expected invalid recipient error")
	}
	if err := m.Send("ada@example.com", "x", "missing_template", nil); err == nil {
		t.Error("expected unknown template error")
	}

	fake.err = errors.New("connection refused")
	if err := m.Send("ada@example.com", "Approved", TemplateTesterApproved, nil); err == nil {
		t.Error("expected dialer error to surface")
	}

	disabled := NewMailer(MailerConfig{})
	if disabled.Enabled() {
		t.Error("mailer without host should be disabled")
	}
	if err := disabled.Send("ada@example.com", "x", TemplateTesterApproved, nil); err != nil {
		t.Errorf("disabled mailer returned %v", err)
	}
}

func TestRenderTemplate(t *testing.T) {
	body, err := renderTemplate(TemplateRewardIssued, "You earned a reward", map[string]interface{}{
		"Name":       "Ada",
		"Program":    "Mobile beta",
		"RewardType": "gift_card",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Ada", "Mobile beta", "gift_card"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestResponses(t *testing.T) {
	app := fiber.New()
	app.Get("/fail", func(c *fiber.Ctx) error {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request", errors.New("title is required"))
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.JSON(SuccessResponse(fiber.Map{"count": 2}))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var failed map[string]interface{}
	decode(t, resp.Body, &failed)
	if failed["success"] != false || failed["error"] != "Invalid request" || failed["details"] != "title is required" {
		t.Errorf("error body = %v", failed)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/ok", nil))
	if err != nil {
		t.Fatal(err)
	}
	var ok map[string]interface{}
	decode(t, resp.Body, &ok)
	if ok["success"] != true || ok["count"] != float64(2) {
		t.Errorf("success body = %v", ok)
	}
}

func TestClampLimitAndParseUint(t *testing.T) {
	if got := ClampLimit(0, 20, 100); got != 20 {
		t.Errorf("default = %d", got)
	}
	if got := ClampLimit(500, 20, 100); got != 100 {
		t.Errorf("max = %d", got)
	}
	if got := ClampLimit(7, 20, 100); got != 7 {
		t.Errorf("passthrough = %d", got)
	}
	if ParseUint("42") != 42 || ParseUint("abc") != 0 || ParseUint("-1") != 0 {
		t.Error("ParseUint misparsed")
	}
}

func decode(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
