// Package dataprocessing turns rendered market pages into canonical
// records and derives decisions from stored snapshots.
//
// The package has three components:
//
//  1. Normalizer: extracts the first HTML table of a page and maps its
//     columns onto a category schema, coercing numeric cells to exact
//     decimals.
//  2. Detector: compares a fresh scrape against the latest committed
//     snapshot to recognize market-closure replays.
//  3. Analyzer: aggregates a trailing window of snapshots into
//     per-identity recurrence statistics.
//
// All three are pure consumers of their inputs; persistence lives in
// the store package.
package dataprocessing
