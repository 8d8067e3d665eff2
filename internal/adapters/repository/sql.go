package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/assay/internal/domain/model"
)

// Dialect selects placeholder style and column types.
type Dialect string

// Supported SQL dialects. The values double as database/sql driver names.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore is a Repository over database/sql. Queries are written with '?'
// placeholders and rebound for postgres.
type SQLStore struct {
	db              *sql.DB
	dialect         Dialect
	maxOpenConns    int
	connMaxLifetime time.Duration
}

var _ Repository = (*SQLStore)(nil)

// Open connects to the database, applies pool settings and migrates the schema.
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*SQLStore, error) {
	switch dialect {
	case DialectSQLite:
		if dsn != ":memory:" && !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
	case DialectPostgres:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	s := NewSQLStore(db, dialect, opts...)
	if dialect == DialectSQLite {
		// sqlite allows a single writer; :memory: databases are per connection.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing connection without migrating it.
func NewSQLStore(db *sql.DB, dialect Dialect, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:              db,
		dialect:         dialect,
		maxOpenConns:    10,
		connMaxLifetime: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetConnMaxLifetime(s.connMaxLifetime)
	return s
}

// rebind turns '?' placeholders into '$n' for postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func inClause(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anyArgs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	template_id   TEXT NOT NULL,
	goal          TEXT NOT NULL,
	passing_score {{float}} NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS answers (
	session_id         TEXT NOT NULL,
	position           INTEGER NOT NULL,
	question_id        TEXT NOT NULL,
	ordinal_value      {{float}},
	precomputed_score  {{float}},
	skipped            BOOLEAN NOT NULL DEFAULT FALSE,
	answered_at        {{time}},
	time_spent_seconds INTEGER,
	PRIMARY KEY (session_id, position)
);
CREATE TABLE IF NOT EXISTS competencies (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	standard_code TEXT
);
CREATE TABLE IF NOT EXISTS indicators (
	id            TEXT PRIMARY KEY,
	competency_id TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	weight        {{float}} NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS questions (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	indicator_id TEXT NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS results (
	id                 TEXT PRIMARY KEY,
	session_id         TEXT NOT NULL UNIQUE,
	status             TEXT NOT NULL,
	goal               TEXT NOT NULL,
	overall_score      {{float}},
	overall_percentage {{float}},
	passed             BOOLEAN,
	questions_answered INTEGER NOT NULL,
	questions_skipped  INTEGER NOT NULL,
	total_time_seconds INTEGER NOT NULL,
	competency_scores  TEXT NOT NULL DEFAULT '[]',
	extended_metrics   TEXT NOT NULL DEFAULT '{}',
	created_at         {{time}} NOT NULL
);
CREATE TABLE IF NOT EXISTS item_statistics (
	question_id    TEXT PRIMARY KEY,
	response_count INTEGER NOT NULL,
	difficulty     {{float}},
	discrimination {{float}},
	status         TEXT NOT NULL,
	retired_reason TEXT,
	updated_at     {{time}} NOT NULL
);
CREATE TABLE IF NOT EXISTS competency_reliability (
	competency_id TEXT PRIMARY KEY,
	alpha         {{float}},
	sample_size   INTEGER NOT NULL,
	item_count    INTEGER NOT NULL,
	status        TEXT NOT NULL,
	updated_at    {{time}} NOT NULL
);
`

// Migrate creates missing tables.
func (s *SQLStore) Migrate(ctx context.Context) error {
	floatType, timeType := "REAL", "TIMESTAMP"
	if s.dialect == DialectPostgres {
		floatType, timeType = "DOUBLE PRECISION", "TIMESTAMPTZ"
	}
	ddl := strings.NewReplacer("{{float}}", floatType, "{{time}}", timeType).Replace(schema)
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// isUniqueViolation recognises duplicate-key errors of both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// Session implements SessionReader.
func (s *SQLStore) Session(ctx context.Context, id string) (model.Session, error) {
	var sess model.Session
	var goal string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, template_id, goal, passing_score FROM sessions WHERE id = ?`), id,
	).Scan(&sess.ID, &sess.TemplateID, &goal, &sess.PassingScore)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("query session %s: %w", id, err)
	}
	sess.Goal = model.Goal(goal)
	return sess, nil
}

const answerColumns = `question_id, ordinal_value, precomputed_score, skipped, answered_at, time_spent_seconds`

func scanAnswer(sc interface{ Scan(...any) error }, extra ...any) (model.Answer, error) {
	var (
		a        model.Answer
		ordinal  sql.NullFloat64
		score    sql.NullFloat64
		answered sql.NullTime
		spent    sql.NullInt64
	)
	dest := append(extra, &a.QuestionID, &ordinal, &score, &a.Skipped, &answered, &spent)
	if err := sc.Scan(dest...); err != nil {
		return model.Answer{}, err
	}
	if ordinal.Valid {
		a.OrdinalValue = &ordinal.Float64
	}
	if score.Valid {
		a.PrecomputedScore = &score.Float64
	}
	if answered.Valid {
		t := answered.Time.UTC()
		a.AnsweredAt = &t
	}
	if spent.Valid {
		v := int(spent.Int64)
		a.TimeSpentSeconds = &v
	}
	return a, nil
}

// Answers implements AnswerReader.
func (s *SQLStore) Answers(ctx context.Context, sessionID string) ([]model.Answer, error) {
	defer observe("answers", time.Now())
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+answerColumns+` FROM answers WHERE session_id = ? ORDER BY position`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HistoricalAnswers implements AnswerReader.
func (s *SQLStore) HistoricalAnswers(ctx context.Context) ([]model.SessionAnswer, error) {
	defer observe("historical_answers", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, `+answerColumns+` FROM answers ORDER BY session_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SessionAnswer
	for rows.Next() {
		var sa model.SessionAnswer
		a, err := scanAnswer(rows, &sa.SessionID)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		sa.Answer = a
		out = append(out, sa)
	}
	return out, rows.Err()
}

func (s *SQLStore) queryQuestions(ctx context.Context, where string, args ...any) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, kind, indicator_id, active FROM questions`+where+` ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Question
	for rows.Next() {
		var q model.Question
		var kind string
		if err := rows.Scan(&q.ID, &kind, &q.IndicatorID, &q.Active); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Kind = model.QuestionKind(kind)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) queryIndicators(ctx context.Context, where string, args ...any) ([]model.Indicator, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, competency_id, title, weight FROM indicators`+where+` ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("query indicators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Indicator
	for rows.Next() {
		var i model.Indicator
		if err := rows.Scan(&i.ID, &i.CompetencyID, &i.Title, &i.Weight); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// Questions implements CatalogReader.
func (s *SQLStore) Questions(ctx context.Context, ids []string) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryQuestions(ctx, ` WHERE id IN (`+inClause(len(ids))+`)`, anyArgs(ids)...)
}

// Indicators implements CatalogReader.
func (s *SQLStore) Indicators(ctx context.Context, ids []string) ([]model.Indicator, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryIndicators(ctx, ` WHERE id IN (`+inClause(len(ids))+`)`, anyArgs(ids)...)
}

// Competencies implements CatalogReader.
func (s *SQLStore) Competencies(ctx context.Context, ids []string) ([]model.Competency, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, name, standard_code FROM competencies WHERE id IN (`+inClause(len(ids))+`) ORDER BY id`),
		anyArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query competencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Competency
	for rows.Next() {
		var c model.Competency
		var code sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &code); err != nil {
			return nil, fmt.Errorf("scan competency: %w", err)
		}
		if code.Valid {
			c.StandardCode = &code.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllQuestions implements CatalogReader.
func (s *SQLStore) AllQuestions(ctx context.Context) ([]model.Question, error) {
	return s.queryQuestions(ctx, "")
}

// AllIndicators implements CatalogReader.
func (s *SQLStore) AllIndicators(ctx context.Context) ([]model.Indicator, error) {
	return s.queryIndicators(ctx, "")
}

// ResultBySession implements ResultStore.
func (s *SQLStore) ResultBySession(ctx context.Context, sessionID string) (model.TestResult, error) {
	var (
		r                   model.TestResult
		status, goal        string
		score, pct          sql.NullFloat64
		passed              sql.NullBool
		compJSON, extraJSON string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, session_id, status, goal, overall_score,
		overall_percentage, passed, questions_answered, questions_skipped, total_time_seconds,
		competency_scores, extended_metrics, created_at FROM results WHERE session_id = ?`), sessionID,
	).Scan(&r.ID, &r.SessionID, &status, &goal, &score, &pct, &passed,
		&r.QuestionsAnswered, &r.QuestionsSkipped, &r.TotalTimeSeconds, &compJSON, &extraJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TestResult{}, fmt.Errorf("result for session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return model.TestResult{}, fmt.Errorf("query result %s: %w", sessionID, err)
	}
	r.Status = model.ResultStatus(status)
	r.Goal = model.Goal(goal)
	r.CreatedAt = r.CreatedAt.UTC()
	if score.Valid {
		r.OverallScore = &score.Float64
	}
	if pct.Valid {
		r.OverallPercentage = &pct.Float64
	}
	if passed.Valid {
		r.Passed = &passed.Bool
	}
	if err := json.Unmarshal([]byte(compJSON), &r.CompetencyScores); err != nil {
		return model.TestResult{}, fmt.Errorf("decode competency scores: %w", err)
	}
	if err := json.Unmarshal([]byte(extraJSON), &r.ExtendedMetrics); err != nil {
		return model.TestResult{}, fmt.Errorf("decode extended metrics: %w", err)
	}
	if len(r.CompetencyScores) == 0 {
		r.CompetencyScores = nil
	}
	if len(r.ExtendedMetrics) == 0 {
		r.ExtendedMetrics = nil
	}
	return r, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// SaveResult implements ResultStore.
func (s *SQLStore) SaveResult(ctx context.Context, r model.TestResult) error {
	defer observe("save_result", time.Now())
	comp := r.CompetencyScores
	if comp == nil {
		comp = []model.CompetencyScore{}
	}
	compJSON, err := json.Marshal(comp)
	if err != nil {
		return fmt.Errorf("encode competency scores: %w", err)
	}
	extra := r.ExtendedMetrics
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("encode extended metrics: %w", err)
	}
	var passed sql.NullBool
	if r.Passed != nil {
		passed = sql.NullBool{Bool: *r.Passed, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO results (id, session_id, status, goal,
		overall_score, overall_percentage, passed, questions_answered, questions_skipped,
		total_time_seconds, competency_scores, extended_metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.SessionID, string(r.Status), string(r.Goal), nullFloat(r.OverallScore),
		nullFloat(r.OverallPercentage), passed, r.QuestionsAnswered, r.QuestionsSkipped,
		r.TotalTimeSeconds, string(compJSON), string(extraJSON), r.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("result for session %s: %w", r.SessionID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// DeleteResult implements ResultStore.
func (s *SQLStore) DeleteResult(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM results WHERE session_id = ?`), sessionID); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

const itemColumns = `question_id, response_count, difficulty, discrimination, status, retired_reason, updated_at`

func scanItem(sc interface{ Scan(...any) error }) (model.ItemStatistics, error) {
	var (
		st         model.ItemStatistics
		diff, disc sql.NullFloat64
		status     string
		reason     sql.NullString
	)
	if err := sc.Scan(&st.QuestionID, &st.ResponseCount, &diff, &disc, &status, &reason, &st.UpdatedAt); err != nil {
		return model.ItemStatistics{}, err
	}
	st.Status = model.ValidityStatus(status)
	st.UpdatedAt = st.UpdatedAt.UTC()
	if diff.Valid {
		st.Difficulty = &diff.Float64
	}
	if disc.Valid {
		st.Discrimination = &disc.Float64
	}
	if reason.Valid {
		st.RetiredReason = &reason.String
	}
	return st, nil
}

// ItemStatistics implements ItemStore.
func (s *SQLStore) ItemStatistics(ctx context.Context, questionID string) (model.ItemStatistics, bool, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+itemColumns+` FROM item_statistics WHERE question_id = ?`), questionID)
	st, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ItemStatistics{}, false, nil
	}
	if err != nil {
		return model.ItemStatistics{}, false, fmt.Errorf("query item statistics: %w", err)
	}
	return st, true, nil
}

// ListItemStatistics implements ItemStore.
func (s *SQLStore) ListItemStatistics(ctx context.Context) ([]model.ItemStatistics, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM item_statistics ORDER BY question_id`)
	if err != nil {
		return nil, fmt.Errorf("query item statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ItemStatistics
	for rows.Next() {
		st, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item statistics: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SaveItemStatistics implements ItemStore.
func (s *SQLStore) SaveItemStatistics(ctx context.Context, st model.ItemStatistics) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO item_statistics (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (question_id) DO UPDATE SET
			response_count = excluded.response_count,
			difficulty = excluded.difficulty,
			discrimination = excluded.discrimination,
			status = excluded.status,
			retired_reason = excluded.retired_reason,
			updated_at = excluded.updated_at`),
		st.QuestionID, st.ResponseCount, nullFloat(st.Difficulty), nullFloat(st.Discrimination),
		string(st.Status), nullString(st.RetiredReason), st.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert item statistics: %w", err)
	}
	return nil
}

// ListReliability implements ItemStore.
func (s *SQLStore) ListReliability(ctx context.Context) ([]model.CompetencyReliability, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT competency_id, alpha, sample_size, item_count, status, updated_at
		FROM competency_reliability ORDER BY competency_id`)
	if err != nil {
		return nil, fmt.Errorf("query reliability: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.CompetencyReliability
	for rows.Next() {
		var r model.CompetencyReliability
		var alpha sql.NullFloat64
		var status string
		if err := rows.Scan(&r.CompetencyID, &alpha, &r.SampleSize, &r.ItemCount, &status, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reliability: %w", err)
		}
		if alpha.Valid {
			r.Alpha = &alpha.Float64
		}
		r.Status = model.ReliabilityStatus(status)
		r.UpdatedAt = r.UpdatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveReliability implements ItemStore.
func (s *SQLStore) SaveReliability(ctx context.Context, r model.CompetencyReliability) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO competency_reliability
		(competency_id, alpha, sample_size, item_count, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (competency_id) DO UPDATE SET
			alpha = excluded.alpha,
			sample_size = excluded.sample_size,
			item_count = excluded.item_count,
			status = excluded.status,
			updated_at = excluded.updated_at`),
		r.CompetencyID, nullFloat(r.Alpha), r.SampleSize, r.ItemCount, string(r.Status), r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert reliability: %w", err)
	}
	return nil
}

// SetQuestionActive implements QuestionWriter.
func (s *SQLStore) SetQuestionActive(ctx context.Context, questionID string, active bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE questions SET active = ? WHERE id = ?`), active, questionID)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	return nil
}

// PutSession implements Seeder.
func (s *SQLStore) PutSession(ctx context.Context, sess model.Session) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO sessions (id, template_id, goal, passing_score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET template_id = excluded.template_id,
			goal = excluded.goal, passing_score = excluded.passing_score`),
		sess.ID, sess.TemplateID, string(sess.Goal), sess.PassingScore)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// PutAnswers implements Seeder. Answers are appended after any already stored.
func (s *SQLStore) PutAnswers(ctx context.Context, sessionID string, answers []model.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT COALESCE(MAX(position), -1) + 1 FROM answers WHERE session_id = ?`), sessionID,
	).Scan(&next); err != nil {
		return fmt.Errorf("next answer position: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO answers (session_id, position, `+answerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare answer insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, a := range answers {
		var answered sql.NullTime
		if a.AnsweredAt != nil {
			answered = sql.NullTime{Time: a.AnsweredAt.UTC(), Valid: true}
		}
		var spent sql.NullInt64
		if a.TimeSpentSeconds != nil {
			spent = sql.NullInt64{Int64: int64(*a.TimeSpentSeconds), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, sessionID, next+i, a.QuestionID,
			nullFloat(a.OrdinalValue), nullFloat(a.PrecomputedScore), a.Skipped, answered, spent); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}
	return tx.Commit()
}

// PutCatalog implements Seeder.
func (s *SQLStore) PutCatalog(ctx context.Context, questions []model.Question, indicators []model.Indicator, competencies []model.Competency) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range competencies {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO competencies (id, name, standard_code) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, standard_code = excluded.standard_code`),
			c.ID, c.Name, nullString(c.StandardCode)); err != nil {
			return fmt.Errorf("upsert competency: %w", err)
		}
	}
	for _, i := range indicators {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO indicators (id, competency_id, title, weight) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET competency_id = excluded.competency_id,
				title = excluded.title, weight = excluded.weight`),
			i.ID, i.CompetencyID, i.Title, i.Weight); err != nil {
			return fmt.Errorf("upsert indicator: %w", err)
		}
	}
	for _, q := range questions {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO questions (id, kind, indicator_id, active) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET kind = excluded.kind,
				indicator_id = excluded.indicator_id, active = excluded.active`),
			q.ID, string(q.Kind), q.IndicatorID, q.Active); err != nil {
			return fmt.Errorf("upsert question: %w", err)
		}
	}
	return tx.Commit()
}

// Stats returns record counts.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"sessions", &st.Sessions},
		{"answers", &st.Answers},
		{"questions", &st.Questions},
		{"results", &st.Results},
		{"item_statistics", &st.Items},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return st, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
