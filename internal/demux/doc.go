// Package demux extracts teletext subtitles from an MPEG transport stream.
//
// The central type is [Demuxer], which reads from an [io.Reader], finds the
// teletext PIDs announced in the PMT, unpacks the EBU data units of every
// teletext PES packet and runs one [teletext.Decoder] per subtitle page.
// Rendered pages are delivered as [media.Subtitle] values on a channel.
//
// Pages are either configured up front or discovered from the teletext
// descriptor and from page headers carrying the subtitle flag.
package demux
