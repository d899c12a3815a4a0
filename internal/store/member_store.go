package store

import (
	"context"
	"time"
)

type MemberStore struct {
	db DB
}

type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type Team struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

type Member struct {
	UserID   string    `db:"user_id"`
	Name     string    `db:"name"`
	Email    string    `db:"email"`
	JoinedAt time.Time `db:"joined_at"`
}

func NewMemberStore(db DB) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) CreateUser(ctx context.Context, tx Execer, id, name, email, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, id, name, email, passwordHash)
	return err
}

func (s *MemberStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var row User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email)
	return row, err
}

func (s *MemberStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var row User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`, userID)
	return row, err
}

func (s *MemberStore) CreateTeam(ctx context.Context, tx Execer, id, name, createdBy string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO teams (id, name, created_by)
		VALUES ($1, $2, $3)
	`, id, name, createdBy)
	return err
}

func (s *MemberStore) GetTeam(ctx context.Context, teamID string) (Team, error) {
	var row Team
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, created_by, created_at
		FROM teams
		WHERE id = $1
	`, teamID)
	return row, err
}

func (s *MemberStore) AddMember(ctx context.Context, tx Execer, teamID, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, user_id) DO UPDATE SET left_at = NULL
	`, teamID, userID)
	return err
}

func (s *MemberStore) RemoveMember(ctx context.Context, tx Execer, teamID, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE team_members
		SET left_at = NOW()
		WHERE team_id = $1 AND user_id = $2 AND left_at IS NULL
	`, teamID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MemberStore) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	var rows []Member
	err := s.db.SelectContext(ctx, &rows, `
		SELECT m.user_id, u.name, u.email, m.joined_at
		FROM team_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1 AND m.left_at IS NULL
		ORDER BY m.user_id
	`, teamID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveMemberIDs returns the ids of all current members of the team in
// ascending order. The split engine relies on this ordering to assign the
// rounding remainder deterministically.
func (s *MemberStore) ActiveMemberIDs(ctx context.Context, tx Selecter, teamID string) ([]string, error) {
	var ids []string
	err := tx.SelectContext(ctx, &ids, `
		SELECT user_id
		FROM team_members
		WHERE team_id = $1 AND left_at IS NULL
		ORDER BY user_id
	`, teamID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MemberStore) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM team_members
			WHERE team_id = $1 AND user_id = $2 AND left_at IS NULL
		)
	`, teamID, userID)
	return exists, err
}

func (s *MemberStore) ListTeamsForUser(ctx context.Context, userID string) ([]Team, error) {
	var rows []Team
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.name, t.created_by, t.created_at
		FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = $1 AND m.left_at IS NULL
		ORDER BY t.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
