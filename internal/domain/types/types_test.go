package types_test

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
)

func TestSession(t *testing.T) {
	Convey("Given a session", t, func() {
		s := types.Session{
			AccessToken: "abc",
			TokenType:   types.TokenType,
			User:        model.User{ID: "u1", Email: "a@b.c", Role: model.RoleCoach, PasswordHash: "secret"},
		}

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(s)
			So(err, ShouldBeNil)

			Convey("Then the password hash never appears", func() {
				So(string(raw), ShouldContainSubstring, `"token_type":"bearer"`)
				So(string(raw), ShouldNotContainSubstring, "secret")
			})
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Given a stats snapshot", t, func() {
		s := types.Stats{Connections: map[model.Role]int{model.RoleCoach: 2}, Workers: 4}

		Convey("Then roles are encoded as object keys", func() {
			raw, err := json.Marshal(s)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"connections":{"coach":2}`)
			So(string(raw), ShouldContainSubstring, `"workers":4`)
		})
	})
}
