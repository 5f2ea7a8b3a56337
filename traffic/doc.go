// Package traffic reads and mutates live traffic overlay tiles.
//
// An overlay tile parallels one road network tile: record i carries the
// live state of directed edge i of the owning tile, so consumers address
// live data with the same tile ids they use for the static network. The
// overlay lives in a shared, writable memory region (usually a memory
// mapped archive entry) with a fixed little endian layout:
//
//	offset size
//	0      4    format version, must equal Version
//	4      8    owning tile id
//	12     8    unix seconds of the newest applied update
//	20     4    directed edge record count
//	24     4    high 32 bits of the spare value
//	28     4    low 32 bits of the spare value
//	32     8*n  speed records, one per directed edge
//
// A region is rejected unless its size is exactly the header plus count
// records.
//
// Mutation model: a feed process rewrites individual records in place
// while other processes read through their own mappings of the same file.
// Record loads and stores are plain 8 byte accesses with no locking, so a
// reader can observe a torn record while a writer is mid store, and reads
// spanning several records or header fields are never a consistent
// snapshot. Every read is a momentary sample; callers that need a stable
// view take a Records snapshot and work on the copy.
package traffic
