package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

const uniqueViolation = "23505"

type Repository struct {
	db *sqlx.DB
}

func NewConnection(databaseURL string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// streamConfigRow is the flat LEFT JOIN of a stream and its config; every
// config column is nullable because the config row may be missing.
type streamConfigRow struct {
	Stream
	CfgStreamID     *int64     `db:"cfg_stream_id"`
	StartDate       *time.Time `db:"start_date"`
	EndDate         *time.Time `db:"end_date"`
	ManualStartTime *string    `db:"manual_start_time"`
	ManualEndTime   *string    `db:"manual_end_time"`
	ActualStartTime *string    `db:"actual_start_time"`
	ActualEndTime   *string    `db:"actual_end_time"`
	IntervalMinutes *int       `db:"interval_minutes"`
	Active          *bool      `db:"active"`
	Weekdays        Weekdays   `db:"weekdays"`
	UseStreamTimes  *bool      `db:"use_stream_times"`
}

func (row *streamConfigRow) toStreamWithConfig() *StreamWithConfig {
	out := &StreamWithConfig{Stream: row.Stream}
	if row.CfgStreamID == nil {
		return out
	}

	out.Config = &MonitoringConfig{
		StreamID:        *row.CfgStreamID,
		StartDate:       row.StartDate,
		EndDate:         row.EndDate,
		ManualStartTime: row.ManualStartTime,
		ManualEndTime:   row.ManualEndTime,
		ActualStartTime: row.ActualStartTime,
		ActualEndTime:   row.ActualEndTime,
		Weekdays:        row.Weekdays,
	}
	if row.IntervalMinutes != nil {
		out.Config.IntervalMinutes = *row.IntervalMinutes
	}
	if row.Active != nil {
		out.Config.Active = *row.Active
	}
	if row.UseStreamTimes != nil {
		out.Config.UseStreamTimes = *row.UseStreamTimes
	}
	return out
}

const streamWithConfigSelect = `
        SELECT s.id, s.name, s.url, s.channel_id, s.created_at,
               c.stream_id AS cfg_stream_id, c.start_date, c.end_date,
               c.manual_start_time, c.manual_end_time,
               c.actual_start_time, c.actual_end_time,
               c.interval_minutes, c.active, c.weekdays, c.use_stream_times
        FROM streams s
        LEFT JOIN monitoring_configs c ON c.stream_id = s.id`

// Stream operations
func (r *Repository) ListStreamsWithConfig(ctx context.Context) ([]*StreamWithConfig, error) {
	rows := []*streamConfigRow{}
	query := streamWithConfigSelect + ` ORDER BY s.name`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}

	out := make([]*StreamWithConfig, len(rows))
	for i, row := range rows {
		out[i] = row.toStreamWithConfig()
	}
	return out, nil
}

func (r *Repository) GetStreamWithConfig(ctx context.Context, id int64) (*StreamWithConfig, error) {
	var row streamConfigRow
	query := streamWithConfigSelect + ` WHERE s.id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stream %d: %w", id, err)
	}
	return row.toStreamWithConfig(), nil
}

func (r *Repository) GetStream(ctx context.Context, id int64) (*Stream, error) {
	var s Stream
	query := `SELECT id, name, url, channel_id, created_at FROM streams WHERE id = $1`

	err := r.db.GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stream %d: %w", id, err)
	}
	return &s, nil
}

// CreateStream inserts the stream and its config in one transaction and
// fills in the generated id.
func (r *Repository) CreateStream(ctx context.Context, s *Stream, cfg *MonitoringConfig) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO streams (name, url, channel_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`

	if err := tx.QueryRowxContext(ctx, query, s.Name, s.URL, s.ChannelID).Scan(&s.ID, &s.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("insert stream: %w", err)
	}

	cfg.StreamID = s.ID
	cfgQuery := `
        INSERT INTO monitoring_configs (
            stream_id, start_date, end_date, manual_start_time, manual_end_time,
            interval_minutes, active, weekdays, use_stream_times
        ) VALUES (
            :stream_id, :start_date, :end_date, :manual_start_time, :manual_end_time,
            :interval_minutes, :active, :weekdays, :use_stream_times
        )`

	if _, err := tx.NamedExecContext(ctx, cfgQuery, cfg); err != nil {
		return fmt.Errorf("insert config: %w", err)
	}

	return tx.Commit()
}

// DeleteStream removes the stream together with its measurements and config.
func (r *Repository) DeleteStream(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM measurements WHERE stream_id = $1`, id); err != nil {
		return fmt.Errorf("delete measurements: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM monitoring_configs WHERE stream_id = $1`, id); err != nil {
		return fmt.Errorf("delete config: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM streams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete stream: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// Config operations
func (r *Repository) GetConfig(ctx context.Context, streamID int64) (*MonitoringConfig, error) {
	var cfg MonitoringConfig
	query := `
        SELECT stream_id, start_date, end_date, manual_start_time, manual_end_time,
               actual_start_time, actual_end_time, interval_minutes, active,
               weekdays, use_stream_times
        FROM monitoring_configs
        WHERE stream_id = $1`

	err := r.db.GetContext(ctx, &cfg, query, streamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get config %d: %w", streamID, err)
	}
	return &cfg, nil
}

// UpdateConfig writes the user-editable fields; the observed actual times
// are left to UpdateActualTimes.
func (r *Repository) UpdateConfig(ctx context.Context, cfg *MonitoringConfig) error {
	query := `
        UPDATE monitoring_configs SET
            start_date = :start_date,
            end_date = :end_date,
            manual_start_time = :manual_start_time,
            manual_end_time = :manual_end_time,
            interval_minutes = :interval_minutes,
            active = :active,
            weekdays = :weekdays,
            use_stream_times = :use_stream_times
        WHERE stream_id = :stream_id`

	res, err := r.db.NamedExecContext(ctx, query, cfg)
	if err != nil {
		return fmt.Errorf("update config %d: %w", cfg.StreamID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateActualTimes(ctx context.Context, streamID int64, start, end *string) error {
	query := `
        UPDATE monitoring_configs SET
            actual_start_time = $2,
            actual_end_time = $3
        WHERE stream_id = $1`

	if _, err := r.db.ExecContext(ctx, query, streamID, start, end); err != nil {
		return fmt.Errorf("update actual times %d: %w", streamID, err)
	}
	return nil
}

// ToggleActive flips the active flag and returns the new value.
func (r *Repository) ToggleActive(ctx context.Context, streamID int64) (bool, error) {
	var active bool
	query := `UPDATE monitoring_configs SET active = NOT active WHERE stream_id = $1 RETURNING active`

	err := r.db.GetContext(ctx, &active, query, streamID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle %d: %w", streamID, err)
	}
	return active, nil
}

// Measurements
func (r *Repository) InsertMeasurement(ctx context.Context, m *Measurement) error {
	query := `
        INSERT INTO measurements (
            stream_id, measured_on, measured_at,
            channel_subscribers, channel_videos, channel_views,
            video_views, video_likes, video_comments, concurrent_viewers
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
        ) RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		m.StreamID,
		m.MeasuredOn.Format("2006-01-02"),
		m.MeasuredAt,
		m.ChannelSubscribers,
		m.ChannelVideos,
		m.ChannelViews,
		m.VideoViews,
		m.VideoLikes,
		m.VideoComments,
		m.ConcurrentViewers,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

func (r *Repository) ListMeasurements(ctx context.Context, f MeasurementFilter) ([]*MeasurementRow, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.StreamID > 0 {
		add("m.stream_id = $%d", f.StreamID)
	}
	if f.From != nil {
		add("m.measured_on >= $%d", f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		add("m.measured_on <= $%d", f.To.Format("2006-01-02"))
	}
	if f.HourFrom != "" {
		add("m.measured_at >= $%d", f.HourFrom)
	}
	if f.HourTo != "" {
		add("m.measured_at <= $%d", f.HourTo)
	}

	query := `
        SELECT m.id, m.stream_id, m.measured_on, m.measured_at,
               m.channel_subscribers, m.channel_videos, m.channel_views,
               m.video_views, m.video_likes, m.video_comments, m.concurrent_viewers,
               s.name AS stream_name
        FROM measurements m
        JOIN streams s ON s.id = m.stream_id`
	if len(conds) > 0 {
		query += "\n        WHERE " + strings.Join(conds, " AND ")
	}
	query += "\n        ORDER BY m.measured_on, m.measured_at"

	rows := []*MeasurementRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	return rows, nil
}
