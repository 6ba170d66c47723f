// Package spectrum reads vendor spectrum exports and turns them into rate and
// background-subtracted spectra.
package spectrum

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Header sentinels
const (
	speData     = "$DATA:"
	speMeasTime = "$MEAS_TIM:"
	speDate     = "$DATE_MEA:"

	mcaData      = "<<DATA>>"
	mcaEnd       = "<<END>>"
	mcaRealTime  = "REAL_TIME"
	mcaStartTime = "START_TIME"

	// Values start at fixed offsets: "REAL_TIME - 300.0", "START_TIME - 10/02/2025 ..."
	mcaRealTimeOffset  = 12
	mcaStartTimeOffset = 13
)

// DetectFormat picks the parser from the last three characters of the path
func DetectFormat(path string) (model.Format, error) {
	if len(path) >= 3 {
		switch path[len(path)-3:] {
		case string(model.FormatSpe):
			return model.FormatSpe, nil
		case string(model.FormatMCA):
			return model.FormatMCA, nil
		}
	}
	return "", &model.FormatError{Path: path, Reason: "unrecognized file type (want .Spe or .mca)"}
}

// Parse reads the spectrum file at path
func Parse(path string) (*model.Spectrum, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open spectrum %s", path)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f, format, path)
}

// ParseReader parses a spectrum in the given format. name is used for error
// messages and recorded as the spectrum path.
func ParseReader(r io.Reader, format model.Format, name string) (*model.Spectrum, error) {
	var (
		s   *model.Spectrum
		err error
	)
	switch format {
	case model.FormatSpe:
		s, err = parseSpe(r, name)
	case model.FormatMCA:
		s, err = parseMCA(r, name)
	default:
		return nil, &model.FormatError{Path: name, Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return nil, err
	}

	if len(s.Counts) == 0 {
		return nil, &model.FormatError{Path: name, Reason: "no data block found"}
	}
	if s.LiveTime <= 0 {
		return nil, &model.FormatError{Path: name, Reason: "missing or non-positive measurement time"}
	}
	if s.Skipped > 0 {
		logrus.WithFields(logrus.Fields{
			"file":    name,
			"skipped": s.Skipped,
		}).Debug("skipped non-numeric lines in data block")
	}
	return s, nil
}

// parseSpe handles the $-sectioned format. The data block runs from $DATA:
// to the next $ section; the first line inside it ("0 1023", the channel
// span) and any other non-numeric line are skipped.
func parseSpe(r io.Reader, name string) (*model.Spectrum, error) {
	s := &model.Spectrum{Path: name, Format: model.FormatSpe}
	inData := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == speData:
			inData = true
			continue
		case strings.HasPrefix(line, speMeasTime):
			inData = false
			if !scanner.Scan() {
				return nil, &model.FormatError{Path: name, Reason: "truncated " + speMeasTime + " section"}
			}
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				return nil, &model.FormatError{Path: name, Reason: "empty " + speMeasTime + " section"}
			}
			t, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, &model.FormatError{Path: name, Reason: fmt.Sprintf("bad measurement time %q", fields[0])}
			}
			s.LiveTime = t
			continue
		case strings.HasPrefix(line, speDate):
			inData = false
			if !scanner.Scan() {
				return nil, &model.FormatError{Path: name, Reason: "truncated " + speDate + " section"}
			}
			s.Date = strings.TrimSpace(scanner.Text())
			continue
		case strings.HasPrefix(line, "$"):
			inData = false
			continue
		}

		if !inData {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			s.Skipped++
			continue
		}
		s.Counts = append(s.Counts, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read spectrum %s", name)
	}
	return s, nil
}

// parseMCA handles the <<SECTION>> format. Only lines between <<DATA>> and
// <<END>> are counts; they must be integers.
func parseMCA(r io.Reader, name string) (*model.Spectrum, error) {
	s := &model.Spectrum{Path: name, Format: model.FormatMCA}
	inData := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, mcaData):
			inData = true
			continue
		case strings.HasPrefix(line, mcaEnd):
			inData = false
			continue
		case strings.HasPrefix(line, mcaRealTime):
			inData = false
			if len(line) < mcaRealTimeOffset {
				return nil, &model.FormatError{Path: name, Reason: fmt.Sprintf("short %s line %q", mcaRealTime, line)}
			}
			t, err := strconv.ParseFloat(strings.TrimSpace(line[mcaRealTimeOffset:]), 64)
			if err != nil {
				return nil, &model.FormatError{Path: name, Reason: fmt.Sprintf("bad %s line %q", mcaRealTime, line)}
			}
			s.LiveTime = t
			continue
		case strings.HasPrefix(line, mcaStartTime):
			inData = false
			if len(line) >= mcaStartTimeOffset {
				s.Date = strings.TrimSpace(line[mcaStartTimeOffset:])
			}
			continue
		}

		if !inData {
			continue
		}
		v, err := strconv.Atoi(line)
		if err != nil {
			s.Skipped++
			continue
		}
		s.Counts = append(s.Counts, float64(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read spectrum %s", name)
	}
	return s, nil
}
