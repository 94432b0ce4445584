// Package qdef defines the persisted, declarative query-definition model.
//
// A query definition describes a data question without committing to a
// backend: which relations participate, how they join, which columns are
// selected or computed, how rows are filtered, grouped, ordered, and capped.
// Two wire shapes co-exist and both must round-trip losslessly through JSON:
//
//   - Legacy shape: tables + columns + filters + limit. Filters are a
//     recursive logical-expression tree (see package expr).
//   - Pipeline shape: an ordered list of typed operations
//     (source, join, filter, filter_group, select, rename, remove, mutate,
//     cast, summarize, order_by, limit, pivot_wider). Operations are
//     consumed strictly in array order; each one transforms the relation
//     produced by everything before it.
//
// Unknown operation types are preserved as raw JSON and re-emitted verbatim.
// Saved pipelines may be older or newer than the running code; dropping an
// operation we do not understand would corrupt the document, so the model
// keeps it and the pipeline builder skips it.
//
// The declared order of tables, columns, filters, and operations is
// significant everywhere: join order, select order, and group-by order are
// all preserved verbatim into generated SQL.
package qdef
