package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/emberday/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var kind string
	var active int

	err := scanner.Scan(&r.ID, &r.Title, &r.Description, &r.Cost, &kind, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Kind = model.RewardKind(kind)
	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, title, description, cost, kind, active, created_at`

func (s *RewardStore) Create(title, description string, cost int, kind model.RewardKind, active bool) (*model.Reward, error) {
	var a int
	if active {
		a = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO rewards (title, description, cost, kind, active) VALUES (?, ?, ?, ?, ?)`,
		title, description, cost, string(kind), a,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns all rewards, active first, then by title.
func (s *RewardStore) List() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + rewardCols + ` FROM rewards ORDER BY active DESC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, title, description string, cost int, kind model.RewardKind, active bool) (*model.Reward, error) {
	var a int
	if active {
		a = 1
	}

	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, cost = ?, kind = ?, active = ? WHERE id = ?`,
		title, description, cost, string(kind), a, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

// --- Ownership reads ---

// Owned reports whether the user already owns the reward.
func (s *RewardStore) Owned(rewardID, userID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reward_ownerships WHERE reward_id = ? AND user_id = ?`,
		rewardID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check ownership: %w", err)
	}
	return count > 0, nil
}

// ListOwnedByUser returns the rewards the user owns, most recent first.
func (s *RewardStore) ListOwnedByUser(userID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.title, r.description, r.cost, r.kind, r.active, r.created_at
		 FROM rewards r
		 JOIN reward_ownerships o ON o.reward_id = r.id
		 WHERE o.user_id = ?
		 ORDER BY o.acquired_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list owned rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}
