// Package srt receives MPEG transport streams over SRT (Secure Reliable
// Transport), in listener mode (Server) for incoming publishers and caller
// mode (Caller) for pulling from remote listeners. Every connection is
// registered with an ingest.Registry.
package srt
