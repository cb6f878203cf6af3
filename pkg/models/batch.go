package models

// GravelBatch is a fixed-size, ordered, frozen batch of raw hashes produced
// by the HashUniverse Partitioner.
type GravelBatch struct {
	ID     uint32
	Hashes []Hash
}

// CandidateBatch is a GravelBatch with baseline-cracked entries removed by
// the Baseline Filter. Order is preserved relative to the parent batch.
type CandidateBatch struct {
	ID     uint32
	Hashes []Hash
}

// Chunk is a concatenation of N candidate batches into one hashlist file
// for efficient GPU dispatch. Transient: deleted once the Distributor
// successfully reconciles its potfile.
type Chunk struct {
	ID        uint32
	BatchIDs  []uint32
	Path      string
	LineCount int
}

// PartitionReport summarizes one Partitioner run.
type PartitionReport struct {
	BatchesWritten int
	HashesWritten  int
	LinesRejected  int
}
