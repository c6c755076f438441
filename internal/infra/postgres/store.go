// Package postgres persists users, groups, lessons, and the attempt ledger.
// The submission path runs inside a single database transaction; the unique
// index on (user_id, lesson_id, attempt) backstops attempt numbering.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"edupath-service/internal/app"
	"edupath-service/internal/domain"
)

type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID              string         `bun:"id,pk"`
	Name            string         `bun:"name"`
	Email           string         `bun:"email"`
	PasswordHash    string         `bun:"password_hash"`
	Role            string         `bun:"role"`
	TotalBestPoints int            `bun:"total_best_points"`
	BestByLesson    map[string]int `bun:"best_by_lesson,type:jsonb"`
	GroupPoints     map[string]int `bun:"group_points,type:jsonb"`
	CreatedAt       time.Time      `bun:"created_at,nullzero,default:now()"`
}

type groupRow struct {
	bun.BaseModel `bun:"table:groups"`

	ID               string    `bun:"id,pk"`
	Name             string    `bun:"name"`
	TeacherID        string    `bun:"teacher_id"`
	AssignedStudents []string  `bun:"assigned_students,type:jsonb"`
	Lessons          []string  `bun:"lessons,type:jsonb"`
	CreatedAt        time.Time `bun:"created_at,nullzero,default:now()"`
}

type lessonRow struct {
	bun.BaseModel `bun:"table:lessons"`

	ID           string        `bun:"id,pk"`
	AssignmentID string        `bun:"assignment_id"`
	Data         domain.Lesson `bun:"data,type:jsonb"`
	CreatedAt    time.Time     `bun:"created_at,nullzero,default:now()"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:lesson_results"`

	ID           string                `bun:"id,pk"`
	UserID       string                `bun:"user_id"`
	GroupID      string                `bun:"group_id"`
	LessonID     string                `bun:"lesson_id"`
	Attempt      int                   `bun:"attempt"`
	PointsEarned int                   `bun:"points_earned"`
	Status       string                `bun:"status"`
	Accuracy     float64               `bun:"accuracy"`
	Detail       []domain.AnswerDetail `bun:"detail,type:jsonb"`
	CreatedAt    time.Time             `bun:"created_at,nullzero,default:now()"`
}

// --- user store ---

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	row := &userRow{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		Role:            string(u.Role),
		TotalBestPoints: u.TotalBestPoints,
		BestByLesson:    emptyCounts(u.BestByLesson),
		GroupPoints:     emptyCounts(u.GroupPoints),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := new(userRow)
	err := s.db.NewSelect().Model(row).Where("email = ?", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListStudents(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	err := s.db.NewSelect().Model(&rows).Where("role = ?", string(domain.RoleStudent)).Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (r *userRow) toDomain() domain.User {
	return domain.User{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash,
		Role:            domain.Role(r.Role),
		TotalBestPoints: r.TotalBestPoints,
		BestByLesson:    emptyCounts(r.BestByLesson),
		GroupPoints:     emptyCounts(r.GroupPoints),
		CreatedAt:       r.CreatedAt,
	}
}

// --- group store ---

func (s *Store) CreateGroup(ctx context.Context, g domain.Group) error {
	row := &groupRow{
		ID:               g.ID,
		Name:             g.Name,
		TeacherID:        g.TeacherID,
		AssignedStudents: emptyList(g.AssignedStudents),
		Lessons:          emptyList(g.Lessons),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]domain.Group, error) {
	var rows []groupRow
	if err := s.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	out := make([]domain.Group, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (r *groupRow) toDomain() domain.Group {
	return domain.Group{
		ID:               r.ID,
		Name:             r.Name,
		TeacherID:        r.TeacherID,
		AssignedStudents: r.AssignedStudents,
		Lessons:          r.Lessons,
		CreatedAt:        r.CreatedAt,
	}
}

// --- lesson store ---

func (s *Store) PutLesson(ctx context.Context, l domain.Lesson) error {
	row := &lessonRow{ID: l.ID, AssignmentID: l.AssignmentID, Data: l}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("assignment_id = EXCLUDED.assignment_id").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert lesson: %w", err)
	}
	return nil
}

func (s *Store) ListLessons(ctx context.Context, assignmentID string) ([]domain.Lesson, error) {
	var rows []lessonRow
	err := s.db.NewSelect().Model(&rows).Where("assignment_id = ?", assignmentID).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	out := make([]domain.Lesson, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Data)
	}
	return out, nil
}

// --- attempts and standings ---

func (s *Store) ListAttempts(ctx context.Context, userID, lessonID string) ([]domain.Attempt, error) {
	q := s.db.NewSelect().Model((*attemptRow)(nil)).Where("user_id = ?", userID)
	if lessonID != "" {
		q = q.Where("lesson_id = ?", lessonID)
	}
	var rows []attemptRow
	if err := q.Order("created_at DESC").Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (r *attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:           r.ID,
		UserID:       r.UserID,
		GroupID:      r.GroupID,
		LessonID:     r.LessonID,
		Attempt:      r.Attempt,
		PointsEarned: r.PointsEarned,
		Status:       domain.LessonStatus(r.Status),
		Accuracy:     r.Accuracy,
		Detail:       r.Detail,
		CreatedAt:    r.CreatedAt,
	}
}

// GroupStandings lists group_points entries for a group, for leaderboard seeding.
func (s *Store) GroupStandings(ctx context.Context, groupID string) ([]domain.StandingEntry, error) {
	var rows []struct {
		UserID      string `bun:"id"`
		DisplayName string `bun:"name"`
		Points      int    `bun:"points"`
	}
	err := s.db.NewSelect().
		Model((*userRow)(nil)).
		Column("id", "name").
		ColumnExpr("COALESCE((group_points ->> ?)::int, 0) AS points", groupID).
		Where("group_points ?? ?", groupID).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("group standings: %w", err)
	}
	out := make([]domain.StandingEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.StandingEntry{UserID: r.UserID, DisplayName: r.DisplayName, Points: r.Points})
	}
	return out, nil
}

// --- reconciliation reads ---

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().Model((*userRow)(nil)).Column("id").Order("id ASC").Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

func (s *Store) BestScores(ctx context.Context, userID string) (domain.BestScoreState, error) {
	return bestScores(ctx, s.db, userID, false)
}

func (s *Store) DerivedBestByLesson(ctx context.Context, userID string) (map[string]int, error) {
	var rows []struct {
		LessonID string `bun:"lesson_id"`
		Best     int    `bun:"best"`
	}
	err := s.db.NewSelect().
		Model((*attemptRow)(nil)).
		Column("lesson_id").
		ColumnExpr("MAX(points_earned) AS best").
		Where("user_id = ?", userID).
		Group("lesson_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("derive best by lesson: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.LessonID] = r.Best
	}
	return out, nil
}

func (s *Store) SaveBestScores(ctx context.Context, userID string, totalBest int, bestByLesson map[string]int) error {
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("total_best_points = ?", totalBest).
		Set("best_by_lesson = ?", emptyCounts(bestByLesson)).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save aggregates: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// --- submission transaction ---

// RunSubmission executes fn inside one database transaction. Writes are
// rolled back when fn errors; unique-index violations are surfaced as
// domain.ErrDuplicateAttempt.
func (s *Store) RunSubmission(ctx context.Context, fn func(ctx context.Context, tx app.SubmissionTx) error) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
	if err != nil && isUniqueViolation(err) {
		return domain.ErrDuplicateAttempt
	}
	return err
}

type pgTx struct {
	tx bun.Tx
}

func (t *pgTx) GetGroup(ctx context.Context, groupID string) (domain.Group, error) {
	row := new(groupRow)
	err := t.tx.NewSelect().Model(row).Where("id = ?", groupID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Group{}, domain.ErrGroupNotFound
		}
		return domain.Group{}, fmt.Errorf("load group: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	row := new(lessonRow)
	err := t.tx.NewSelect().Model(row).Where("id = ?", lessonID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Lesson{}, domain.ErrLessonNotFound
		}
		return domain.Lesson{}, fmt.Errorf("load lesson: %w", err)
	}
	return row.Data, nil
}

// LockBestScores takes FOR UPDATE on the user row, serializing concurrent
// submissions by the same user for the rest of the transaction.
func (t *pgTx) LockBestScores(ctx context.Context, userID string) (domain.BestScoreState, error) {
	return bestScores(ctx, t.tx, userID, true)
}

func (t *pgTx) BestScores(ctx context.Context, userID string) (domain.BestScoreState, error) {
	return bestScores(ctx, t.tx, userID, false)
}

func (t *pgTx) LatestAttempt(ctx context.Context, userID, lessonID string) (int, error) {
	var latest sql.NullInt64
	err := t.tx.NewSelect().
		Model((*attemptRow)(nil)).
		ColumnExpr("MAX(attempt)").
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Scan(ctx, &latest)
	if err != nil {
		return 0, fmt.Errorf("latest attempt: %w", err)
	}
	return int(latest.Int64), nil
}

func (t *pgTx) InsertAttempt(ctx context.Context, a domain.Attempt) error {
	row := &attemptRow{
		ID:           a.ID,
		UserID:       a.UserID,
		GroupID:      a.GroupID,
		LessonID:     a.LessonID,
		Attempt:      a.Attempt,
		PointsEarned: a.PointsEarned,
		Status:       string(a.Status),
		Accuracy:     a.Accuracy,
		Detail:       a.Detail,
		CreatedAt:    a.CreatedAt,
	}
	if _, err := t.tx.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateAttempt
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (t *pgTx) ApplyBestDelta(ctx context.Context, userID, lessonID, groupID string, best, delta int) error {
	_, err := t.tx.NewUpdate().
		Model((*userRow)(nil)).
		Set("best_by_lesson = jsonb_set(best_by_lesson, array[?], to_jsonb(?::int), true)", lessonID, best).
		Set("group_points = jsonb_set(group_points, array[?], to_jsonb(COALESCE((group_points ->> ?)::int, 0) + ?::int), true)", groupID, groupID, delta).
		Set("total_best_points = total_best_points + ?", delta).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("apply best delta: %w", err)
	}
	return nil
}

func bestScores(ctx context.Context, db bun.IDB, userID string, forUpdate bool) (domain.BestScoreState, error) {
	row := new(userRow)
	q := db.NewSelect().Model(row).Where("id = ?", userID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BestScoreState{}, domain.ErrUserNotFound
		}
		return domain.BestScoreState{}, fmt.Errorf("load aggregates: %w", err)
	}
	return domain.BestScoreState{
		UserID:          row.ID,
		Name:            row.Name,
		TotalBestPoints: row.TotalBestPoints,
		BestByLesson:    emptyCounts(row.BestByLesson),
		GroupPoints:     emptyCounts(row.GroupPoints),
	}, nil
}

// isUniqueViolation reports SQLSTATE 23505 from the pgdriver.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

func emptyCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func emptyList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
