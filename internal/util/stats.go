package util

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Registry holds every janken metric. It is private to the process so the
// default prometheus registry's Go runtime collectors are not mixed in.
var Registry = prometheus.NewRegistry()

// Stats is the process-wide negotiation/message counter.
var Stats = newStats(Registry)

type stats struct {
	PacketsEncoded    prometheus.Counter // negotiation packets encoded for a carrier
	PacketsDecoded    prometheus.Counter // negotiation packets decoded successfully
	DecodeErrors      prometheus.Counter // negotiation texts rejected by the codec
	CandidatesSkipped prometheus.Counter // remote candidates that failed to apply
	MessagesSent      prometheus.Counter // game messages written to the channel
	MessagesRecv      prometheus.Counter // game messages read from the channel
	MessagesDropped   prometheus.Counter // sends attempted while the channel was closed
	BytesSent         prometheus.Counter
	BytesRecv         prometheus.Counter
}

func newStats(reg prometheus.Registerer) *stats {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "janken",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}

	return &stats{
		PacketsEncoded:    counter("packets_encoded_total", "Negotiation packets encoded."),
		PacketsDecoded:    counter("packets_decoded_total", "Negotiation packets decoded."),
		DecodeErrors:      counter("decode_errors_total", "Negotiation texts rejected as malformed."),
		CandidatesSkipped: counter("candidates_skipped_total", "Remote ICE candidates that could not be applied."),
		MessagesSent:      counter("messages_sent_total", "Game messages sent over the data channel."),
		MessagesRecv:      counter("messages_received_total", "Game messages received over the data channel."),
		MessagesDropped:   counter("messages_dropped_total", "Game messages dropped because the channel was not open."),
		BytesSent:         counter("bytes_sent_total", "Bytes written to the data channel."),
		BytesRecv:         counter("bytes_received_total", "Bytes read from the data channel."),
	}
}

func (s *stats) AddEncoded()          { s.PacketsEncoded.Inc() }
func (s *stats) AddDecoded()          { s.PacketsDecoded.Inc() }
func (s *stats) AddDecodeError()      { s.DecodeErrors.Inc() }
func (s *stats) AddCandidateSkipped() { s.CandidatesSkipped.Inc() }
func (s *stats) AddDropped()          { s.MessagesDropped.Inc() }

func (s *stats) AddSent(n int) {
	s.MessagesSent.Inc()
	s.BytesSent.Add(float64(n))
}

func (s *stats) AddRecv(n int) {
	s.MessagesRecv.Inc()
	s.BytesRecv.Add(float64(n))
}
