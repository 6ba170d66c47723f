package spectrum

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

const sampleSpe = `$SPEC_ID:
No sample description was entered.
$DATE_MEA:
10/02/2025 14:05:11
$MEAS_TIM:
300 305
$DATA:
0 4
      10
      20
      30
      40
      50
$ROI:
1
0 4
$PRESETS:
None
`

const sampleMCA = `<<PMCA SPECTRUM>>
TAG - live_data
REAL_TIME - 120.500000
START_TIME - 10/02/2025 14:05:11
<<DATA>>
1
2
3
<<END>>
<<DP5 CONFIGURATION>>
RESC=Y;
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    model.Format
		wantErr bool
	}{
		{"data/Cs_NaITi.Spe", model.FormatSpe, false},
		{"data/Cs_CdTe.mca", model.FormatMCA, false},
		{"data/notes.txt", "", true},
		{"data/upper.MCA", "", true},
		{"a", "", true},
	}

	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		if tt.wantErr {
			if !errors.Is(err, model.ErrFormat) {
				t.Errorf("DetectFormat(%q): expected ErrFormat, got %v", tt.path, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("DetectFormat(%q): unexpected error %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseSpe(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Cs_NaITi.Spe", sampleSpe)

	s, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []float64{10, 20, 30, 40, 50}
	if len(s.Counts) != len(want) {
		t.Fatalf("expected %d channels, got %d (%v)", len(want), len(s.Counts), s.Counts)
	}
	for i := range want {
		if s.Counts[i] != want[i] {
			t.Errorf("channel %d: expected %v, got %v", i, want[i], s.Counts[i])
		}
	}
	if s.LiveTime != 300 {
		t.Errorf("expected live time 300, got %v", s.LiveTime)
	}
	if s.Date != "10/02/2025 14:05:11" {
		t.Errorf("unexpected date %q", s.Date)
	}
	if s.Skipped != 1 {
		t.Errorf("expected the channel span line to be skipped, got %d skipped", s.Skipped)
	}
	if s.Format != model.FormatSpe {
		t.Errorf("expected format Spe, got %q", s.Format)
	}
}

func TestParseMCA(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Am_CdTe.mca", sampleMCA)

	s, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(s.Counts) != 3 || s.Counts[0] != 1 || s.Counts[2] != 3 {
		t.Errorf("unexpected counts %v", s.Counts)
	}
	if s.LiveTime != 120.5 {
		t.Errorf("expected live time 120.5, got %v", s.LiveTime)
	}
	if s.Date != "10/02/2025 14:05:11" {
		t.Errorf("unexpected date %q", s.Date)
	}
}

func TestParseMCA_SkipsNonInteger(t *testing.T) {
	input := strings.Replace(sampleMCA, "2\n", "2.5\n", 1)

	s, err := ParseReader(strings.NewReader(input), model.FormatMCA, "x.mca")
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}
	if len(s.Counts) != 2 || s.Skipped != 1 {
		t.Errorf("expected 2 counts and 1 skipped line, got %v and %d", s.Counts, s.Skipped)
	}
}

func TestParseReader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format model.Format
		input  string
	}{
		{"spe without data", model.FormatSpe, "$MEAS_TIM:\n300 300\n"},
		{"spe without time", model.FormatSpe, "$DATA:\n0 1\n5\n6\n"},
		{"spe truncated time", model.FormatSpe, "$DATA:\n5\n$MEAS_TIM:\n"},
		{"spe bad time", model.FormatSpe, "$MEAS_TIM:\nabc\n$DATA:\n5\n"},
		{"mca without data", model.FormatMCA, "REAL_TIME - 10\n"},
		{"mca zero time", model.FormatMCA, "REAL_TIME - 0\n<<DATA>>\n1\n<<END>>\n"},
		{"mca bad time", model.FormatMCA, "REAL_TIME - soon\n<<DATA>>\n1\n<<END>>\n"},
		{"unknown format", model.Format("txt"), "1\n2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReader(strings.NewReader(tt.input), tt.format, "input")
			if !errors.Is(err, model.ErrFormat) {
				t.Errorf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.Spe"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, model.ErrFormat) {
		t.Error("missing file should not be reported as a format error")
	}
}
