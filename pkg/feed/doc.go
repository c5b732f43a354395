// Package feed keeps an ordered, deduplicated window of chain items (blocks or
// transactions) in sync with a remote data source. The window grows at the head
// by periodic polling and at the tail by on-demand pagination.
//
// Terminology
//   - Head: the newest end of the window (highest block height, most recent transaction).
//   - Tail: the oldest end of the window, extended page by page.
//   - Highest / Lowest: the loaded cursors. Every cached item sits inside
//     [Lowest..Highest]. Highest only grows and Lowest only shrinks once known.
//
// Main components
//   - Window: the cache itself. Items are keyed (block hash, txid) and kept in
//     strictly descending position order. Merge silently drops keys already present.
//   - Engine: owns one Window and drives it through Initialize, PollHead and
//     ExtendTail. Each direction is single-flight: a call made while another call
//     of the same direction is outstanding returns Skipped without touching the
//     network. Head and tail may run concurrently; their position ranges never
//     overlap because each only inserts outside the cursors it observed.
//   - Strategy: the position-space policy plugged into an Engine. DenseStrategy
//     addresses blocks by height; OffsetStrategy pages transactions by offset and
//     assigns synthetic recency ranks.
//   - Session: swaps engines when a filter changes. The old engine is closed so
//     responses still in flight are discarded instead of merged.
//
// Failure handling
//   - Initialize returns its error and leaves the engine Uninitialized, so a
//     retry starts from scratch.
//   - PollHead and ExtendTail never return errors past the engine. Failures are
//     reported in the Result, kept as the engine's last error and leave the
//     window and cursors untouched.
package feed
