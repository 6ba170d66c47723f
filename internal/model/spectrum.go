package model

// Format identifies a vendor spectrum export format
type Format string

const (
	FormatSpe Format = "Spe" // Maestro-style ASCII export ($DATA:, $MEAS_TIM:, $DATE_MEA:)
	FormatMCA Format = "mca" // Amptek-style export (<<DATA>> ... <<END>>, REAL_TIME, START_TIME)
)

// Extension returns the file suffix used by the format
func (f Format) Extension() string {
	return "." + string(f)
}

// Spectrum is one parsed acquisition. The channel axis is implicit: Counts[i]
// belongs to channel i.
type Spectrum struct {
	Path     string    `json:"path"`
	Format   Format    `json:"format"`
	Counts   []float64 `json:"counts"`
	LiveTime float64   `json:"live_time"` // seconds, > 0
	Date     string    `json:"date,omitempty"`
	Skipped  int       `json:"skipped,omitempty"` // non-numeric lines dropped from the data block
}

// Len returns the number of channels
func (s *Spectrum) Len() int {
	return len(s.Counts)
}

// RateSpectrum holds counts per second for each channel
type RateSpectrum struct {
	Source string    `json:"source"`
	Rates  []float64 `json:"rates"`
}

// Len returns the number of channels
func (r *RateSpectrum) Len() int {
	return len(r.Rates)
}

// NetSpectrum is a background-subtracted rate spectrum. Values may be negative.
type NetSpectrum struct {
	Source     string    `json:"source"`
	Background string    `json:"background"`
	Rates      []float64 `json:"rates"`
}

// Len returns the number of channels
func (n *NetSpectrum) Len() int {
	return len(n.Rates)
}

// Window returns the channels and net rates inside r. The caller must ensure
// r fits the spectrum (see ChannelRange.Within).
func (n *NetSpectrum) Window(r ChannelRange) (x, y []float64) {
	return channelAxis(r.Start, r.End), n.Rates[r.Start:r.End]
}

func channelAxis(start, end int) []float64 {
	out := make([]float64, 0, end-start)
	for ch := start; ch < end; ch++ {
		out = append(out, float64(ch))
	}
	return out
}
