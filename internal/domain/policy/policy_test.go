package policy_test

import (
	"errors"
	"testing"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRequire(t *testing.T) {
	Convey("Given the role policy", t, func() {
		Convey("When the role is in the allowed set", func() {
			So(policy.Require(model.RoleCoach, policy.SimulationOperators...), ShouldBeNil)
			So(policy.Require(model.RoleTeammate, policy.Responders...), ShouldBeNil)
		})

		Convey("When the role is outside the allowed set", func() {
			err := policy.Require(model.RoleAthlete, policy.ReportViewers...)
			So(errors.Is(err, policy.ErrForbidden), ShouldBeTrue)
		})

		Convey("When no role was resolved", func() {
			err := policy.Require("", policy.Responders...)
			So(errors.Is(err, policy.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When checking an actor without identity", func() {
			err := policy.RequireActor(model.Actor{Role: model.RoleCoach}, policy.Responders...)
			So(errors.Is(err, policy.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When checking ownership", func() {
			owner := model.Actor{ID: "c1", Role: model.RoleCoach}
			So(policy.RequireSelf(owner, "c1"), ShouldBeNil)
			So(errors.Is(policy.RequireSelf(owner, "c2"), policy.ErrForbidden), ShouldBeTrue)
		})
	})
}
