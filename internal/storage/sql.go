package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hperssn/focusflow/internal/domain"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	driver      string
	schema      string
	placeholder func(n int) string
}

// SQLRepository implements Repository over database/sql. Embedded points and
// notification preferences are stored as JSON columns.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
}

func openSQL(d dialect, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}

	repo := &SQLRepository{db: db, dialect: d}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLRepository) createTables() error {
	_, err := r.db.Exec(r.dialect.schema)
	return err
}

// bind rewrites ? placeholders into the dialect's form.
func (r *SQLRepository) bind(query string) string {
	if r.dialect.placeholder == nil {
		return query
	}

	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString(r.dialect.placeholder(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

const userColumns = `id, subject, email, name, picture, created_at, last_active, total_sessions, total_focus_minutes, notifications_json`

func (r *SQLRepository) CreateUser(ctx context.Context, u *domain.User) error {
	rec := FromDomainUser(u)
	prefs, err := json.Marshal(rec.Notifications)
	if err != nil {
		return err
	}

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.bind(query),
		rec.ID,
		rec.Subject,
		rec.Email,
		rec.Name,
		rec.Picture,
		rec.CreatedAt,
		rec.LastActive,
		rec.TotalSessions,
		rec.TotalFocusMinutes,
		string(prefs),
	)
	return err
}

func (r *SQLRepository) UpdateUser(ctx context.Context, u *domain.User) error {
	rec := FromDomainUser(u)
	prefs, err := json.Marshal(rec.Notifications)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET email = ?, name = ?, picture = ?, last_active = ?, notifications_json = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, r.bind(query),
		rec.Email,
		rec.Name,
		rec.Picture,
		rec.LastActive,
		string(prefs),
		rec.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *SQLRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, r.bind(query), id))
}

func (r *SQLRepository) GetUserBySubject(ctx context.Context, subject string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE subject = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, r.bind(query), subject))
}

func (r *SQLRepository) IncrementUserStats(ctx context.Context, userID string, sessions, focusMinutes int64) error {
	query := `
		UPDATE users
		SET total_sessions = total_sessions + ?, total_focus_minutes = total_focus_minutes + ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, r.bind(query), sessions, focusMinutes, userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *SQLRepository) scanUser(row *sql.Row) (*domain.User, error) {
	var rec UserRecord
	var picture sql.NullString
	var prefs []byte

	err := row.Scan(
		&rec.ID,
		&rec.Subject,
		&rec.Email,
		&rec.Name,
		&picture,
		&rec.CreatedAt,
		&rec.LastActive,
		&rec.TotalSessions,
		&rec.TotalFocusMinutes,
		&prefs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Picture = picture.String
	if err := json.Unmarshal(prefs, &rec.Notifications); err != nil {
		return nil, fmt.Errorf("decode notifications for user %s: %w", rec.ID, err)
	}

	return rec.ToDomain(), nil
}

const sessionColumns = `id, user_id, status, task, mood, start_time, end_time, duration_sec, average_score, max_score, min_score, points_json`

func (r *SQLRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	rec := FromDomainSession(s)
	pointsJSON, err := json.Marshal(rec.Points)
	if err != nil {
		return err
	}

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.bind(query),
		rec.ID,
		rec.UserID,
		rec.Status,
		rec.Task,
		rec.Mood,
		rec.StartTime,
		nullTime(rec),
		rec.DurationSec,
		rec.AverageScore,
		rec.MaxScore,
		rec.MinScore,
		string(pointsJSON),
	)
	return err
}

func (r *SQLRepository) SaveSession(ctx context.Context, s *domain.Session) error {
	rec := FromDomainSession(s)
	pointsJSON, err := json.Marshal(rec.Points)
	if err != nil {
		return err
	}

	query := `
		UPDATE sessions
		SET status = ?, task = ?, mood = ?, end_time = ?, duration_sec = ?,
			average_score = ?, max_score = ?, min_score = ?, points_json = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, r.bind(query),
		rec.Status,
		rec.Task,
		rec.Mood,
		nullTime(rec),
		rec.DurationSec,
		rec.AverageScore,
		rec.MaxScore,
		rec.MinScore,
		string(pointsJSON),
		rec.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *SQLRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	rows, err := r.db.QueryContext(ctx, r.bind(query), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanOneSession(rows)
}

func (r *SQLRepository) FindActiveSession(ctx context.Context, userID string) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = ? AND status = ?
		ORDER BY start_time DESC
		LIMIT 1
	`
	rows, err := r.db.QueryContext(ctx, r.bind(query), userID, string(domain.StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanOneSession(rows)
}

func (r *SQLRepository) ListCompletedSessions(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = ? AND status = ?
		ORDER BY end_time DESC
	`
	args := []any{userID, string(domain.StatusCompleted)}
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}

	rows, err := r.db.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

func (r *SQLRepository) scanOneSession(rows *sql.Rows) (*domain.Session, error) {
	sessions, err := r.scanSessions(rows)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return sessions[0], nil
}

func (r *SQLRepository) scanSessions(rows *sql.Rows) ([]*domain.Session, error) {
	var sessions []*domain.Session

	for rows.Next() {
		var rec SessionRecord
		var end sql.NullTime
		var pointsJSON []byte

		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Status,
			&rec.Task,
			&rec.Mood,
			&rec.StartTime,
			&end,
			&rec.DurationSec,
			&rec.AverageScore,
			&rec.MaxScore,
			&rec.MinScore,
			&pointsJSON,
		)
		if err != nil {
			return nil, err
		}

		if end.Valid {
			t := end.Time
			rec.EndTime = &t
		}
		if err := json.Unmarshal(pointsJSON, &rec.Points); err != nil {
			return nil, fmt.Errorf("decode points for session %s: %w", rec.ID, err)
		}

		sessions = append(sessions, rec.ToDomain())
	}

	return sessions, rows.Err()
}

func (r *SQLRepository) SaveFocusData(ctx context.Context, d *domain.FocusData) error {
	rec := FromDomainFocusData(d)

	query := `
		INSERT INTO focus_data (id, user_id, session_id, ts, typing_speed, idle_time, tab_switches, focus_score, focus_label, ai_message, voice_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.bind(query),
		rec.ID,
		rec.UserID,
		rec.SessionID,
		rec.Timestamp,
		rec.TypingSpeed,
		rec.IdleTime,
		rec.TabSwitches,
		rec.FocusScore,
		rec.FocusLabel,
		rec.AIMessage,
		rec.VoiceURL,
	)
	return err
}

func (r *SQLRepository) ListFocusData(ctx context.Context, userID string, q FocusDataQuery) ([]domain.FocusData, error) {
	query := `
		SELECT id, user_id, session_id, ts, typing_speed, idle_time, tab_switches, focus_score, focus_label, ai_message, voice_url
		FROM focus_data
		WHERE user_id = ?`
	args := []any{userID}

	if !q.Since.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.Until.UTC())
	}

	if q.Ascending {
		query += ` ORDER BY ts ASC`
	} else {
		query += ` ORDER BY ts DESC`
	}
	if q.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FocusData
	for rows.Next() {
		var rec FocusDataRecord
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.SessionID,
			&rec.Timestamp,
			&rec.TypingSpeed,
			&rec.IdleTime,
			&rec.TabSwitches,
			&rec.FocusScore,
			&rec.FocusLabel,
			&rec.AIMessage,
			&rec.VoiceURL,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.ToDomain())
	}

	return out, rows.Err()
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(rec *SessionRecord) sql.NullTime {
	if rec.EndTime == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *rec.EndTime, Valid: true}
}
