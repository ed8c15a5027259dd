package drill

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faker/faker/v4"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
)

// account is a provisioned user with a live token.
type account struct {
	ID    string
	Name  string
	Email string
	Role  model.Role
	Token string
}

// roster groups provisioned accounts by role.
type roster map[model.Role][]account

func (r roster) all() []account {
	var out []account
	for _, role := range model.Roles() {
		out = append(out, r[role]...)
	}
	return out
}

// responders are the accounts every raised emergency must reach besides the
// athlete.
func (r roster) responders() []account {
	var out []account
	for _, role := range []model.Role{model.RoleCoach, model.RoleReferee, model.RoleTeammate} {
		out = append(out, r[role]...)
	}
	return out
}

// provision registers and logs in every account the drill needs. Emails are
// scoped by runID so repeated drills do not collide.
func provision(ctx context.Context, c *HTTPClient, cfg *Config, runID string) (roster, error) {
	type slot struct {
		role  model.Role
		index int
	}
	var slots []slot
	for role, n := range map[model.Role]int{
		model.RoleAthlete:  cfg.Athletes,
		model.RoleCoach:    cfg.Coaches,
		model.RoleReferee:  cfg.Referees,
		model.RoleTeammate: cfg.Teammates,
	} {
		for i := 0; i < n; i++ {
			slots = append(slots, slot{role: role, index: i})
		}
	}

	accounts := make([]account, len(slots))
	err := parallel(ctx, cfg.Workers, len(slots), func(ctx context.Context, i int) error {
		s := slots[i]
		email := fmt.Sprintf("%s-%s-%d@drill.example.com", runID, s.role, s.index)
		a, err := signIn(ctx, c, email, cfg.Password, s.role)
		if err != nil {
			return err
		}
		accounts[i] = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("provision accounts: %w", err)
	}

	out := roster{}
	for _, a := range accounts {
		out[a.Role] = append(out[a.Role], a)
	}
	logger.Get().Info(ctx, "accounts provisioned",
		logger.Int("athletes", len(out[model.RoleAthlete])),
		logger.Int("coaches", len(out[model.RoleCoach])),
		logger.Int("referees", len(out[model.RoleReferee])),
		logger.Int("teammates", len(out[model.RoleTeammate])))
	return out, nil
}

// signIn registers email (an existing account is fine) and logs in.
func signIn(ctx context.Context, c *HTTPClient, email, password string, role model.Role) (account, error) {
	name := faker.FirstName() + " " + faker.LastName()
	status, err := c.Do(ctx, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": name,
		"role":      string(role),
	}, nil)
	if err != nil {
		return account{}, fmt.Errorf("register %s: %w", email, err)
	}
	if status != http.StatusCreated && status != http.StatusConflict {
		return account{}, fmt.Errorf("register %s: status %d", email, status)
	}

	var sess types.Session
	status, err = c.Do(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &sess)
	if err != nil {
		return account{}, fmt.Errorf("login %s: %w", email, err)
	}
	if status != http.StatusOK {
		return account{}, fmt.Errorf("login %s: status %d", email, status)
	}
	return account{
		ID:    sess.User.ID,
		Name:  sess.User.FullName,
		Email: email,
		Role:  sess.User.Role,
		Token: sess.AccessToken,
	}, nil
}
