// Package exec is the execution layer: it takes compiled statement text,
// applies row caps, template substitution, and the native-SQL safety
// gate, runs the result against a live connection, and returns a typed
// result envelope.
//
// Responsibilities:
//   - Statement pipeline: hard-limit wrap, {{ QRY_xxx }} substitution,
//     percent normalization, safety gate (see Prepare)
//   - Execution with guaranteed connection release on every exit path
//   - Error classification into user-facing categories (see Classify)
//   - Best-effort result caching keyed by statement digest
//   - Type inference for columns with no declared type
//   - Pivot/unpivot/transpose post-processing
package exec

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quarrydata/quarry/internal/builder"
	"github.com/quarrydata/quarry/internal/cache"
	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/infer"
)

// inferSample bounds how many rows feed type inference per column.
const inferSample = 100

// Result is the envelope returned by every successful execution.
type Result struct {
	// RunID identifies this execution in logs.
	RunID string `json:"run_id"`

	// Columns is the output schema, with inferred types filled in.
	Columns []builder.ResultColumn `json:"columns"`

	// Rows holds scalar values in column order.
	Rows [][]any `json:"rows"`

	// TimeTaken is the backend round-trip in seconds.
	TimeTaken float64 `json:"time_taken"`
}

// Options controls a single execution.
type Options struct {
	// Limit is the effective row cap for the hard-limit wrap. Zero means
	// the system cap for the run kind.
	Limit int

	// Download lifts the interactive cap and bypasses the cache.
	Download bool

	// Native marks hand-written SQL; it must pass the safety gate.
	// Native runs bypass the cache.
	Native bool

	// Validate marks a run whose results are discarded; it bypasses the
	// cache so stale entries never mask a broken statement.
	Validate bool

	// Columns is the declared output schema. Columns with an empty Type
	// get one inferred from sampled values. When nil, the schema comes
	// from the driver's reported column names.
	Columns []builder.ResultColumn

	// Pivot, when set, unstacks the result set after execution.
	Pivot *builder.PivotSpec

	// Templates resolves {{ QRY_xxx }} tags in native statements.
	Templates TemplateLookup
}

// Executor runs statements against one data source's connection.
type Executor struct {
	DB      *sql.DB
	Dialect *dialect.Dialect
	Source  string
	Cache   *cache.Cache[*Result]
	Log     *slog.Logger
}

// New creates an Executor. Logger defaults to slog.Default; cache may be
// nil to disable result caching.
func New(db *sql.DB, d *dialect.Dialect, source string) *Executor {
	return &Executor{
		DB:      db,
		Dialect: d,
		Source:  source,
		Log:     slog.Default(),
	}
}

// Execute runs one statement end to end and returns its result envelope.
// Definition and safety errors surface before any backend call; backend
// errors come back classified, with the raw driver error only in logs.
func (e *Executor) Execute(ctx context.Context, stmt string, opts Options) (*Result, error) {
	runID := uuid.NewString()
	log := e.logger().With("run_id", runID, "source", e.Source)

	prepared, err := Prepare(e.Dialect, stmt, PrepareOptions{
		Limit:     opts.Limit,
		Download:  opts.Download,
		Native:    opts.Native,
		Templates: opts.Templates,
	})
	if err != nil {
		log.Warn("statement rejected", "error", err)
		return nil, err
	}

	bypass := opts.Native || opts.Download || opts.Validate
	key := cache.Key(e.Source, prepared)
	if !bypass {
		if res, ok := e.Cache.Get(key); ok {
			log.Info("cache hit", "key", key)
			return res, nil
		}
	}

	start := time.Now()
	rows, err := e.DB.QueryContext(ctx, prepared)
	if err != nil {
		classified := Classify(e.Source, err)
		log.Error("query failed",
			"code", string(classified.Code),
			"cause", err,
			"statement", prepared)
		return nil, classified
	}
	defer rows.Close()

	res, err := e.collect(rows, opts.Columns)
	if err != nil {
		classified := Classify(e.Source, err)
		log.Error("result scan failed", "cause", err)
		return nil, classified
	}
	res.RunID = runID
	res.TimeTaken = time.Since(start).Seconds()

	if opts.Pivot != nil {
		res = Unstack(res, opts.Pivot)
	}

	log.Info("query executed",
		"elapsed", res.TimeTaken,
		"rows", len(res.Rows),
		"statement", prepared)

	if !bypass {
		e.Cache.Put(key, res)
	}
	return res, nil
}

func (e *Executor) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// collect drains the row set into the envelope, normalizing driver byte
// slices to strings and inferring types for untyped columns.
func (e *Executor) collect(rows *sql.Rows, declared []builder.ResultColumn) (*Result, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	cols := make([]builder.ResultColumn, len(names))
	for i, name := range names {
		if declared != nil && i < len(declared) {
			cols[i] = declared[i]
			continue
		}
		cols[i] = builder.ResultColumn{Label: name}
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cols {
		if cols[i].Type == "" {
			cols[i].Type = inferColumn(out, i)
		}
	}
	return &Result{Columns: cols, Rows: out}, nil
}

func inferColumn(rows [][]any, idx int) string {
	sample := make([]any, 0, inferSample)
	for _, row := range rows {
		if row[idx] == nil {
			continue
		}
		sample = append(sample, row[idx])
		if len(sample) == inferSample {
			break
		}
	}
	return infer.Column(sample)
}
