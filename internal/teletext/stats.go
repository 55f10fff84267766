package teletext

// Corruption names the kind of error-protection failure found in a packet.
type Corruption string

const (
	CorruptionParity  Corruption = "parity"
	CorruptionHam84   Corruption = "hamming84"
	CorruptionHam2418 Corruption = "hamming2418"
)

// StatsRecorder receives decoder telemetry. Implementations must be safe
// for concurrent use when shared between decoders.
type StatsRecorder interface {
	RecordPacket(row int)
	RecordCorruption(kind Corruption)
	RecordCharset(language string)
	RecordCue(page int)
}
