// Package sacn implements the core of ANSI E1.31-2018 (streaming ACN): a
// receiver with sequence arbitration, priority merging, synchronization
// hold-and-release and universe discovery reassembly, and a sender with
// per-universe sequencing, payload fragmentation, paginated discovery
// advertisement and stream termination.
//
// Wire encoding lives in the packet subpackage; socket ownership lives in
// the transport subpackage.
package sacn
