package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stomp/internal/domain/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestPasswords(t *testing.T) {
	Convey("Given a hashed password", t, func() {
		hash, err := HashPassword("correct horse battery")
		So(err, ShouldBeNil)
		So(strings.HasPrefix(hash, "$argon2id$"), ShouldBeTrue)

		Convey("Then the same password matches", func() {
			ok, err := ComparePassword("correct horse battery", hash)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("Then another password does not", func() {
			ok, err := ComparePassword("wrong", hash)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Then two hashes of one password differ", func() {
			again, _ := HashPassword("correct horse battery")
			So(again, ShouldNotEqual, hash)
		})

		Convey("Then a mangled hash is rejected", func() {
			_, err := ComparePassword("x", "$bcrypt$nope")
			So(errors.Is(err, ErrInvalidHash), ShouldBeTrue)
		})
	})
}

func TestTokens(t *testing.T) {
	Convey("Given an issuer", t, func() {
		iss := NewIssuer(testSecret, 30*time.Minute)
		user := model.User{ID: "u-1", Email: "coach@example.com", Role: model.RoleCoach}

		Convey("When a token is issued and parsed", func() {
			raw, err := iss.Issue(user)
			So(err, ShouldBeNil)
			claims, err := iss.Parse(raw)

			Convey("Then the identity round-trips", func() {
				So(err, ShouldBeNil)
				So(claims.Actor(), ShouldResemble, model.Actor{ID: "u-1", Role: model.RoleCoach})
				So(claims.Subject, ShouldEqual, "coach@example.com")
			})
		})

		Convey("When the token was signed with another key", func() {
			raw, _ := NewIssuer("another-secret-another-secret-xx", time.Minute).Issue(user)
			_, err := iss.Parse(raw)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When the token has expired", func() {
			raw, _ := NewIssuer(testSecret, -time.Minute).Issue(user)
			_, err := iss.Parse(raw)

			Convey("Then it is rejected as expired", func() {
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "expired")
			})
		})

		Convey("When the input is not a token", func() {
			_, err := iss.Parse("garbage")
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})
	})
}

func TestValidateRegister(t *testing.T) {
	valid := RegisterRequest{Email: "a@b.co", Password: "longenough", FullName: "Ada", Role: "athlete"}
	tests := []struct {
		name    string
		mutate  func(r *RegisterRequest)
		wantErr string
	}{
		{"valid", func(*RegisterRequest) {}, ""},
		{"bad email", func(r *RegisterRequest) { r.Email = "nope" }, "email must be a valid email"},
		{"short password", func(r *RegisterRequest) { r.Password = "short" }, "password must be at least 8"},
		{"unknown role", func(r *RegisterRequest) { r.Role = "medic" }, "role must be one of"},
		{"missing name", func(r *RegisterRequest) { r.FullName = "" }, "full_name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := Validate(req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	Convey("Given a request context", t, func() {
		_, ok := FromContext(context.Background())
		So(ok, ShouldBeFalse)

		p := Principal{Actor: model.Actor{ID: "u-1", Role: model.RoleReferee}, Email: "r@example.com"}
		got, ok := FromContext(WithPrincipal(context.Background(), p))
		So(ok, ShouldBeTrue)
		So(got, ShouldResemble, p)
	})

	Convey("Given requests carrying tokens", t, func() {
		header := httptest.NewRequest("GET", "/api/x", nil)
		header.Header.Set("Authorization", "Bearer abc")
		query := httptest.NewRequest("GET", "/ws?token=def", nil)
		none := httptest.NewRequest("GET", "/ws", nil)

		So(TokenFromRequest(header), ShouldEqual, "abc")
		So(TokenFromRequest(query), ShouldEqual, "def")
		So(TokenFromRequest(none), ShouldEqual, "")
	})
}
