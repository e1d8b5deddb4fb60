package parser

import (
	"fmt"
	"strconv"

	"github.com/saviobatista/trackrescue/internal/timesync"
	"github.com/saviobatista/trackrescue/internal/types"
)

// DecodeGpsAnchor reads a classified GPS "H" record
func DecodeGpsAnchor(rec *types.RawRecord) (types.GpsAnchor, error) {
	if err := expect(rec, types.FileGPS, types.KindAnchor); err != nil {
		return types.GpsAnchor{}, err
	}

	utcEpoch, _ := strconv.ParseInt(rec.Field(1), 10, 64)
	lat, _ := parseFloat(rec.Field(2))
	lon, _ := parseFloat(rec.Field(3))
	ele, _ := parseFloat(rec.Field(4))
	localEpoch, _ := strconv.ParseInt(rec.Field(5), 10, 64)

	if lat < -90 || lat > 90 {
		return types.GpsAnchor{}, recordError(rec, types.CodeBadNumber, 2, fmt.Errorf("latitude %v out of range", lat))
	}
	if lon < -180 || lon > 180 {
		return types.GpsAnchor{}, recordError(rec, types.CodeBadNumber, 3, fmt.Errorf("longitude %v out of range", lon))
	}
	for _, i := range []int{6, 7} {
		if _, _, err := timesync.ParseDateTime(rec.Field(i)); err != nil {
			return types.GpsAnchor{}, recordError(rec, types.CodeBadTime, i, err)
		}
	}

	return types.GpsAnchor{
		UTCEpoch:   utcEpoch,
		LocalEpoch: localEpoch,
		UTC:        timesync.EpochTime(utcEpoch),
		Local:      timesync.EpochTime(localEpoch),
		Latitude:   lat,
		Longitude:  lon,
		ElevationM: ele,
		UTCText:    rec.Field(6),
		LocalText:  rec.Field(7),
		Line:       rec.LineNumber,
	}, nil
}

// DecodeGpsDelta reads a classified GPS "D" record
func DecodeGpsDelta(rec *types.RawRecord) (types.GpsDelta, error) {
	if err := expect(rec, types.FileGPS, types.KindDelta); err != nil {
		return types.GpsDelta{}, err
	}

	deltaMs, _ := strconv.ParseInt(rec.Field(1), 10, 64)
	eleMm, _ := parseFloat(rec.Field(4))
	speed, _ := parseFloat(rec.Field(5))

	return types.GpsDelta{
		DeltaMs:          deltaMs,
		Field2:           rec.Field(2),
		Field3:           rec.Field(3),
		DeltaElevationMm: eleMm,
		SpeedMps:         speed,
		Heading:          rec.Field(6),
		Line:             rec.LineNumber,
	}, nil
}

// DecodeAccAnchor reads a classified accelerometer "H" record
func DecodeAccAnchor(rec *types.RawRecord) (types.AccAnchor, error) {
	if err := expect(rec, types.FileAcc, types.KindAnchor); err != nil {
		return types.AccAnchor{}, err
	}

	counter, _ := strconv.ParseInt(rec.Field(1), 10, 64)
	localEpoch, _ := strconv.ParseInt(rec.Field(2), 10, 64)
	if _, _, err := timesync.ParseDateTime(rec.Field(3)); err != nil {
		return types.AccAnchor{}, recordError(rec, types.CodeBadTime, 3, err)
	}

	return types.AccAnchor{
		MonotonicMs: counter,
		LocalEpoch:  localEpoch,
		Local:       timesync.EpochTime(localEpoch),
		LocalText:   rec.Field(3),
		Line:        rec.LineNumber,
	}, nil
}

// DecodeAccDelta reads a classified accelerometer "D" record
func DecodeAccDelta(rec *types.RawRecord) (types.AccDelta, error) {
	if err := expect(rec, types.FileAcc, types.KindDelta); err != nil {
		return types.AccDelta{}, err
	}

	deltaMs, _ := strconv.ParseInt(rec.Field(1), 10, 64)
	return types.AccDelta{
		DeltaMs: deltaMs,
		X:       rec.Field(2),
		Y:       rec.Field(3),
		Z:       rec.Field(4),
		Line:    rec.LineNumber,
	}, nil
}

// ApplyHeader stores a header record into h. It returns false when h
// already held a value for that kind, in which case h is left unchanged.
func ApplyHeader(h *types.Header, rec *types.RawRecord) bool {
	switch rec.Kind {
	case types.KindUser:
		if h.Username != "" {
			return false
		}
		h.Username = rec.Field(1)
	case types.KindVersion:
		if h.FormatVersion != "" {
			return false
		}
		h.FormatVersion = rec.Field(1)
	case types.KindAppVersion:
		if h.AppVersion != "" {
			return false
		}
		h.AppVersion = rec.Field(1)
	case types.KindDevice:
		if h.DeviceID != nil {
			return false
		}
		h.DeviceID = append([]string{}, rec.Fields[1:]...)
	}
	return true
}

func expect(rec *types.RawRecord, ft types.FileType, kind types.Kind) error {
	if rec.File != ft || rec.Kind != kind {
		return fmt.Errorf("record at line %d is a %s %s record, not %s %s", rec.LineNumber, rec.File, rec.Kind, ft, kind)
	}
	return nil
}

func recordError(rec *types.RawRecord, code string, field int, err error) *types.RecordFormatError {
	fe := formatError(rec.File, rec.LineNumber, code, field, err)
	fe.Kind = rec.Kind
	return fe
}
